// Package enginetest provides compliance test suites for agentbridge
// adapters.
//
// Adapter compliance tests live in the clitest sub-package.
package enginetest
