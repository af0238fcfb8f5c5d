// Package llm abstracts the language model used as a structured-output oracle
// by intent extraction. Providers live in sub-packages and return the raw model
// text; validation of that text is the caller's responsibility.
package llm
