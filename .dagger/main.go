// Scribe CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/scribe/internal/dagger"
)

// Scribe is the main module for the Scribe CI/CD pipeline
type Scribe struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Scribe CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp"]
	source *dagger.Directory,
) *Scribe {
	return &Scribe{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with the project
// source mounted and Go caches in place.
//
// It is the shared foundation for tests, builds, and linting.
func (t *Scribe) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", t.Source)
}

// Test runs the scribe unit tests via "go test"
func (t *Scribe) Test(ctx context.Context) (string, error) {
	return t.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}

// TestRace runs the relay and client packages under the race detector, which
// needs cgo.
func (t *Scribe) TestRace(ctx context.Context) (string, error) {
	return t.goContainer().
		WithEnvVariable("CGO_ENABLED", "1").
		WithExec([]string{"go", "test", "-race", "./relay/...", "./pkg/client/...", "./pkg/frame/...", "./pkg/document/..."}).
		Stdout(ctx)
}
