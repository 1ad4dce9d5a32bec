// Package web holds the monitoring page.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Environment variables that change where the page is served from.
const (
	// DevEnv serves the page from the dist folder next to this source file,
	// so that edits show up without rebuilding.
	DevEnv = "HDLSIM_MONITOR_DEV"

	// AssetsDirEnv serves the page from the given directory.
	AssetsDirEnv = "HDLSIM_MONITOR_ASSETS"
)

//go:embed dist/*
var dist embed.FS

// Assets returns the files of the monitoring page.
func Assets() http.FileSystem {
	if dir := os.Getenv(AssetsDirEnv); dir != "" {
		fmt.Fprintf(os.Stderr, "Serving monitoring page from %s\n", dir)
		return http.Dir(dir)
	}

	if dev, _ := strconv.ParseBool(os.Getenv(DevEnv)); dev {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			panic("web: cannot locate source directory")
		}

		dir := filepath.Join(filepath.Dir(file), "dist")
		fmt.Fprintf(os.Stderr, "Serving monitoring page from %s\n", dir)

		return http.Dir(dir)
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}
