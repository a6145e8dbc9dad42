package main

// Version is the buildstamp CLI version. Release builds override it with
// -ldflags "-X main.Version=...".
var (
	Version = "0.1.0"
)
