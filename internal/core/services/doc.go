// Package services implements the driving port interfaces.
// Services hold the question-answering workflow and orchestrate
// calls to driven ports (adapters): vector stores, embedders and LLMs.
package services
