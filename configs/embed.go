// Package configs provides embedded configuration files for psearch.
//
// Files are embedded at build time, so every binary carries them:
//   - presets.yaml: the built-in preset table (internal/preset)
//   - project-config.example.yaml: written by `psearch init` as .psearch.yaml
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (NewConfig())
//  2. User config (~/.config/psearch/config.yaml)
//  3. Project config (.psearch.yaml)
//  4. Environment variables (PSEARCH_*)
//  5. Command line flags
package configs

import _ "embed"

// DefaultPresets is the built-in name -> query table.
//
//go:embed presets.yaml
var DefaultPresets []byte

// ProjectConfigTemplate is the template for project-level configuration.
// Created by: `psearch init` at .psearch.yaml in the project root.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
