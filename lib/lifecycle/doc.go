// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle collects the reasons a server process should shut
// down and turns them into a single shutdown.
//
// A [Trigger] is fired by any number of sources: termination signals
// ([Trigger.NotifySignals]), a sentinel file watched with fsnotify
// ([WatchSentinel]), or the admin socket. Only the first Fire has any
// effect; later ones are logged and ignored, so the server's shutdown
// runs exactly once whatever combination of sources fires.
package lifecycle
