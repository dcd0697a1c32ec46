// Package logging defines the Logger interface consumed across AgentHive and
// ships slog based implementations plus a NoOpLogger default.
package logging
