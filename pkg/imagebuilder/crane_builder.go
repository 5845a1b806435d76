// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package imagebuilder builds the pipeline's container runtime image with
// crane, without a local Docker daemon.
package imagebuilder

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/compression"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/sirupsen/logrus"

	"kpg-launcher/pkg/shell"
)

// RequiredBuildFiles are the package build inputs a pipeline context must
// carry: the dependency manifest, the optional-dependency manifest, the
// build descriptor and the readme referenced by it.
var RequiredBuildFiles = []string{
	"requirements.txt",
	"requirements.opt.txt",
	"setup.py",
	"README.md",
}

// DefaultIgnorePatterns are always excluded from the image layer.
var DefaultIgnorePatterns = []string{
	".git",
	"__pycache__",
	"*.pyc",
	"*.log",
	"*.pt",
	"data",
	"models",
	"tmp/",
	".DS_Store",
}

// BuildOptions holds parameters for a runtime image build.
type BuildOptions struct {
	// Registry is the repository prefix the image is pushed under,
	// e.g. "gcr.io/my-project".
	Registry string
	// BaseImage is the runtime base carrying the OS-level build
	// prerequisites and the Python runtime; dependency installation is the
	// base image's concern, not replicated here.
	BaseImage string
	// ContextDir is the pipeline package source directory.
	ContextDir string
	// Platform is the target platform, e.g. "linux/amd64".
	Platform string
}

// BuildRuntimeImage layers the pipeline package source onto the base image,
// sets an interactive shell as the default entry point, and pushes the
// result. It returns the pushed image reference.
func BuildRuntimeImage(opts BuildOptions, ignoreMatcher *patternmatcher.PatternMatcher) (string, error) {
	platform, err := parsePlatform(opts.Platform)
	if err != nil {
		return "", err
	}

	if err := checkBuildFiles(opts.ContextDir); err != nil {
		return "", err
	}

	userName := os.Getenv("USER")
	if userName == "" {
		userName = "unknown"
	}

	tagRandomPrefix := shell.RandomString(4)
	tagDatetime := time.Now().Format("2006-01-02-15-04-05") // YYYY-MM-DD-HH-MM-SS
	imageName := fmt.Sprintf("%s/%s-kpg-runtime:%s-%s", strings.TrimSuffix(opts.Registry, "/"), userName, tagRandomPrefix, tagDatetime)

	logrus.Infof("Starting runtime image build for %s", imageName)
	logrus.Infof("Base image: %s", opts.BaseImage)
	logrus.Infof("Package source: %s", opts.ContextDir)
	logrus.Infof("Target platform: %s/%s", platform.OS, platform.Architecture)

	// 1. Create a tarball in a temporary file from the package source,
	// applying ignore patterns.
	tempTarballPath, err := createFilteredTar(opts.ContextDir, ignoreMatcher)
	if err != nil {
		return "", fmt.Errorf("failed to create filtered tarball: %w", err)
	}
	defer func() {
		if tempTarballPath != "" {
			os.Remove(tempTarballPath)
			logrus.Debugf("Cleaned up temporary tarball file: %s", tempTarballPath)
		}
	}()

	// 2. Create a v1.Layer from the tarball.
	srcLayer, err := tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		file, openErr := os.Open(tempTarballPath)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open temporary tarball %q: %w", tempTarballPath, openErr)
		}
		return file, nil
	}, tarball.WithCompression(compression.GZip))
	if err != nil {
		return "", fmt.Errorf("failed to create layer from tarball: %w", err)
	}

	// 3. Pull the base image.
	baseRef, err := name.ParseReference(opts.BaseImage)
	if err != nil {
		return "", fmt.Errorf("failed to parse base image reference %q: %w", opts.BaseImage, err)
	}
	baseImg, err := crane.Pull(baseRef.String(), crane.WithPlatform(&platform))
	if err != nil {
		return "", fmt.Errorf("failed to pull base image %q: %w", opts.BaseImage, err)
	}

	// 4. Append the package source layer.
	newImg, err := mutate.AppendLayers(baseImg, srcLayer)
	if err != nil {
		return "", fmt.Errorf("failed to append layer: %w", err)
	}

	// 5. Default entry point is an interactive shell; the pipeline command
	// line is supplied at job submission, not baked into the image.
	newImg, err = setShellEntrypoint(newImg)
	if err != nil {
		return "", err
	}

	// 6. Push the new image.
	imageRef, err := name.ParseReference(imageName)
	if err != nil {
		return "", fmt.Errorf("failed to parse new image reference %q: %w", imageName, err)
	}
	logrus.Infof("Uploading runtime image to %s", imageName)
	if err := crane.Push(newImg, imageRef.String(), crane.WithPlatform(&platform)); err != nil {
		return "", fmt.Errorf("failed to push image %q: %w", imageName, err)
	}

	logrus.Infof("Image %s built and uploaded successfully.", imageName)
	return imageName, nil
}

// checkBuildFiles verifies the package build inputs exist in the context
// before anything is pulled or pushed.
func checkBuildFiles(contextDir string) error {
	var missing []string
	for _, f := range RequiredBuildFiles {
		if _, err := os.Stat(filepath.Join(contextDir, f)); err != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("build context %q is missing required files: %s", contextDir, strings.Join(missing, ", "))
	}
	return nil
}

// setShellEntrypoint rewrites the image config so the container drops into
// an interactive shell by default.
func setShellEntrypoint(img v1.Image) (v1.Image, error) {
	cfgFile, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to read image config: %w", err)
	}
	cfg := cfgFile.Config
	cfg.Entrypoint = []string{"/bin/bash"}
	cfg.Cmd = nil

	newImg, err := mutate.Config(img, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set image entrypoint: %w", err)
	}
	return newImg, nil
}

// parsePlatform converts a platform string (e.g., "linux/amd64") into a v1.Platform struct.
func parsePlatform(platformStr string) (v1.Platform, error) {
	parts := strings.Split(platformStr, "/")
	if len(parts) != 2 {
		return v1.Platform{}, fmt.Errorf("invalid platform format: %q, expected \"os/arch\"", platformStr)
	}
	return v1.Platform{
		OS:           parts[0],
		Architecture: parts[1],
	}, nil
}

// ReadIgnorePatterns merges defaultPatterns with the context's .dockerignore
// (when present) into a matcher for layer filtering.
func ReadIgnorePatterns(dir string, defaultPatterns []string) (*patternmatcher.PatternMatcher, error) {
	dockerignorePath := filepath.Join(dir, ".dockerignore")

	patterns := make([]string, len(defaultPatterns))
	copy(patterns, defaultPatterns)

	if _, err := os.Stat(dockerignorePath); err == nil {
		file, err := os.Open(dockerignorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open .dockerignore file %q: %w", dockerignorePath, err)
		}
		defer file.Close()

		filePatterns, err := ignorefile.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read .dockerignore file %q: %w", dockerignorePath, err)
		}
		patterns = append(patterns, filePatterns...)
		logrus.Infof("Found %d patterns in .dockerignore at %q", len(filePatterns), dockerignorePath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat .dockerignore file %q: %w", dockerignorePath, err)
	}

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern matcher: %w", err)
	}
	return matcher, nil
}

// processTarEntry processes a single file or directory for tarball creation.
func processTarEntry(tarWriter *tar.Writer, sourceDir string, ignoreMatcher *patternmatcher.PatternMatcher, path string, info fs.FileInfo, errFromWalk error) error {
	if errFromWalk != nil {
		return errFromWalk
	}

	relPath, err := filepath.Rel(sourceDir, path)
	if err != nil {
		return fmt.Errorf("failed to get relative path for %q: %w", path, err)
	}

	if relPath == "." {
		return nil
	}

	// Directory matching needs a trailing slash, per moby/patternmatcher.
	relPathSlash := filepath.ToSlash(relPath)
	if info.IsDir() && !strings.HasSuffix(relPathSlash, "/") {
		relPathSlash += "/"
	}

	ignored, err := ignoreMatcher.MatchesOrParentMatches(relPathSlash)
	if err != nil {
		return fmt.Errorf("failed to check ignore patterns for %q: %w", path, err)
	}

	if ignored {
		if info.IsDir() {
			logrus.Debugf("Ignoring directory %q", relPath)
			return filepath.SkipDir
		}
		logrus.Debugf("Ignoring file %q", relPath)
		return nil
	}

	header, err := tar.FileInfoHeader(info, relPath)
	if err != nil {
		return fmt.Errorf("failed to create tar header for %q: %w", path, err)
	}
	header.Name = relPath

	if err := tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %q: %w", path, err)
	}

	if info.Mode().IsRegular() {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file %q: %w", path, err)
		}
		defer file.Close()

		if _, err := io.Copy(tarWriter, file); err != nil {
			return fmt.Errorf("failed to write file content for %q: %w", path, err)
		}
	}

	return nil
}

func createFilteredTar(sourceDir string, ignoreMatcher *patternmatcher.PatternMatcher) (string, error) {
	tmpFile, err := os.CreateTemp("", "kpg-build-context-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file for tarball: %w", err)
	}
	defer tmpFile.Close()

	gzipWriter := gzip.NewWriter(tmpFile)
	tarWriter := tar.NewWriter(gzipWriter)

	logrus.Infof("Creating filtered tar from %s to temporary file %s", sourceDir, tmpFile.Name())

	var walkErr error
	defer func() {
		// Close the tar and gzip writers to flush any buffered data.
		if closeErr := tarWriter.Close(); closeErr != nil && walkErr == nil {
			walkErr = fmt.Errorf("failed to close tar writer: %w", closeErr)
		}
		if closeErr := gzipWriter.Close(); closeErr != nil && walkErr == nil {
			walkErr = fmt.Errorf("failed to close gzip writer: %w", closeErr)
		}
	}()

	walkErr = filepath.Walk(sourceDir, func(path string, info fs.FileInfo, err error) error {
		return processTarEntry(tarWriter, sourceDir, ignoreMatcher, path, info, err)
	})

	if walkErr != nil {
		os.Remove(tmpFile.Name())
		return "", walkErr
	}

	return tmpFile.Name(), nil
}
