// Package gemini provides the Gemini-backed caption generator for the
// caption task type, plus a filename-based fallback used when no API key is
// configured. Both satisfy task.Captioner.
package gemini
