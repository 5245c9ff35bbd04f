// Package agent defines the collaborator that produces assistant replies.
//
// # Overview
//
// An Agent receives the user's message, the replayed conversation history
// and the owner it acts for, and returns reply text plus an audit record of
// every tool it invoked:
//
//	res, err := a.Run(ctx, &agent.Request{
//	    Owner:   "user-1",
//	    Message: "add buy milk",
//	    History: history,
//	})
//
// # Tools
//
// Tools are langchaingo tools that also publish a JSON schema for their
// input. A Toolkit binds a tool set to one owner, so every call made during a
// turn is scoped to that owner's data.
//
// A tool that returns an error is recorded with the result
// {"error":"tool failed"}; the error itself is only logged.
//
// # Implementations
//
//   - OpenAIAgent: drives any OpenAI-compatible /chat/completions endpoint,
//     executing tool calls for up to MaxRounds iterations.
//   - RuleAgent: an offline keyword agent for development and tests.
package agent
