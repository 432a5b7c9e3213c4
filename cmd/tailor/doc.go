// Command tailor is the CLI client for the CV-tailoring pipeline: upload a
// CV, extract job requirements, run the alignment analysis, then chat with
// the backend supervisor agent, with optional voice input.
package main
