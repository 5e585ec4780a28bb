// Package transfer drives the external detail-transfer tool that bakes a
// parent texture's detail onto child UV layouts.
//
// Jobs are collected with AddToBatch while children are scheduled and handed
// to the tool in one invocation by ProcessBatch, which writes a TOML batch
// manifest, runs the tool from the resource directory and streams its output
// to the logger. Tests swap the subprocess out through WithExecutor.
package transfer
