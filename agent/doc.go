// Package agent provides the concrete conversation participants of AgentHive:
// ModelAgent drives a language model (optionally with streaming and function
// calling) and CodeExecAgent runs fenced code blocks through a configured
// executor. Both embed BaseAgent for identity and implement core.Agent so they
// can be composed into teams or driven directly by the runner.
package agent
