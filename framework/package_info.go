// Package framework contains the low-level types shared by every part of the application
// host: the Logger abstraction used for debug output, and the error kinds that the host
// reports to test code.
//
// The general model is:
//
// 1. A domain (package domain) hosts one live copy of an application under test, built by a
// request-processing pipeline (package pipeline describes the contract, package webapp is
// the default implementation).
//
// 2. Test code sends work into the domain as transportable closures (package transport).
//
// 3. Inside the domain, a browsing session (package browsing) drives simulated requests
// through the pipeline (package simulate) and reads back the per-request objects that the
// capture interceptor (package capture) saved before the pipeline discarded them.
package framework
