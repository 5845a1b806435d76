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

package cmd

import (
	"kpg-launcher/pkg/imagebuilder"
	"kpg-launcher/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	imageRegistry string
	imageBase     string
	imageContext  string
	imagePlatform string
)

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.Flags().StringVarP(&imageRegistry, "registry", "r", "", "Registry prefix to push the runtime image under (e.g., gcr.io/my-project). Required.")
	imageCmd.Flags().StringVar(&imageBase, "base-image", "", "Base runtime image carrying the OS packages and Python runtime. Required.")
	imageCmd.Flags().StringVarP(&imageContext, "context", "c", "", "Path to the pipeline package source directory. Required.")
	imageCmd.Flags().StringVarP(&imagePlatform, "platform", "f", "linux/amd64", "Target platform for the image (e.g., 'linux/amd64', 'linux/arm64').")

	_ = imageCmd.MarkFlagRequired("registry")
	_ = imageCmd.MarkFlagRequired("base-image")
	_ = imageCmd.MarkFlagRequired("context")
}

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Builds and pushes the pipeline's container runtime image.",
	Long: `The 'image' command layers the pipeline package source (its dependency
manifests, build descriptor and readme included) onto a base runtime image
with Crane and pushes the result. The image's default entry point is an
interactive shell.`,
	Run:          runImageCmd,
	SilenceUsage: true,
}

func runImageCmd(cmd *cobra.Command, args []string) {
	matcher, err := imagebuilder.ReadIgnorePatterns(imageContext, imagebuilder.DefaultIgnorePatterns)
	if err != nil {
		logging.Fatal("Failed to read ignore patterns: %v", err)
	}

	imageName, err := imagebuilder.BuildRuntimeImage(imagebuilder.BuildOptions{
		Registry:   imageRegistry,
		BaseImage:  imageBase,
		ContextDir: imageContext,
		Platform:   imagePlatform,
	}, matcher)
	if err != nil {
		logging.Fatal("kplaunch image failed: %v", err)
	}

	logging.Info("Runtime image available at: %s", imageName)
}
