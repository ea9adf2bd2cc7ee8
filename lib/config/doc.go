// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config resolves the tcprender server configuration.
//
// A [Config] is assembled from three layers, later layers winning:
//
//  1. [Default] values.
//  2. An optional config file, named by --config or the
//     TCPRENDER_CONFIG environment variable. Files ending in .json or
//     .jsonc are read as JSON with comments; anything else is YAML.
//  3. Command-line flags that were explicitly set.
//
// Arguments of the form --<engine>.<name>[=value] are not flags: [Parse]
// extracts them first and collects them into [Config].RenderOptions
// with the engine prefix removed. A bare --markdown.unsafe means true.
// Values are coerced with [render.ParseValue].
//
// ${HOME} and ${VAR:-default} patterns are expanded in path fields
// (touchstop, admin_socket) after loading. No other environment
// variables override config values.
//
// Every problem with the configuration is reported as a *[Error], which
// the command layer maps to exit status 2.
package config
