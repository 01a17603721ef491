// Package clitest provides compliance test suites for adapter documents.
//
// Test authors call [RunAdapterTests] with a factory function that returns
// the document under test. The resume suite runs only for documents that
// declare a resume block.
//
// Example usage in an adapter test file:
//
//	package myadapter_test
//
//	import (
//	    "testing"
//	    "github.com/dmora/agentbridge/adapter"
//	    "github.com/dmora/agentbridge/enginetest/clitest"
//	)
//
//	func TestCompliance(t *testing.T) {
//	    clitest.RunAdapterTests(t, func() *adapter.Config {
//	        cfg, _ := adapter.Load("myagent.yaml")
//	        return cfg
//	    })
//	}
package clitest
