// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render defines the rendering engine contract and the engines
// tcprender ships with.
//
// A [Renderer] turns a UTF-8 document into output text. It reports
// problems with the document as a *[Failure], whose message is sent
// back to the client verbatim; any other error is treated the same way
// by the server but indicates a fault in the engine itself.
//
// Renderers are invoked concurrently from independent connections and
// must not mutate the document or the [Options] they are given.
//
// Engines:
//
//   - [Markdown] converts CommonMark (with GitHub extensions by
//     default) to HTML using goldmark, optionally highlighting fenced
//     code with chroma.
//   - [Command] pipes each document through an external program, by
//     default the MJML CLI ("mjml -i -s"), reading HTML from its
//     stdout.
package render
