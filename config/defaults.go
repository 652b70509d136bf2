package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultConfigPath is tried first when --config is not given.
	DefaultConfigPath = "config.yaml"

	// FallbackConfigPath is tried when DefaultConfigPath does not exist.
	FallbackConfigPath = "config.json"

	// DefaultMode is activated when --mode is not given.
	DefaultMode = "ai"

	// DefaultMaxRetries is the number of connect attempts per sequence.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the backoff after the first failed attempt.
	DefaultBaseDelay = 1 * time.Second

	// DefaultShutdownTimeout bounds the disconnect-all on exit.
	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultFile is the mode table used when neither config file exists.
// Every tool is a simulated catalog entry.
const DefaultFile = `
settings:
  max_retries: 3
  base_delay: 1s
  shutdown_timeout: 10s

modes:
  ai:
    name: Data Science / AI Research
    description: Ray + Dask + OpenAI for AI research
    tools: [ray, dask, openai]
  engineering:
    name: Engineering / Simulation
    description: Simulink + Python interface
    tools: [simulink, python_interface]
  writing:
    name: AI-assisted Writing
    description: LangChain + LangGraph
    tools: [langchain, langgraph]
  experiment:
    name: Experiment Management
    description: FastAPI + GitHub API + Shortcuts
    tools: [fastapi, github, shortcuts]
  notes:
    name: Cross-platform Notes / Literature
    description: Obsidian + Zotero
    tools: [obsidian, zotero]
`
