package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clowdy-dev/clowdy/driver"
	_ "github.com/clowdy-dev/clowdy/driver/docker"
	"github.com/clowdy-dev/clowdy/imagebuilder"
)

var (
	imageProjectID string
	imageManifest  string
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Manage project sandbox images",
}

var imageBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build (or reuse the cached) image for a project's manifest",
	Run: func(cmd *cobra.Command, args []string) {
		manifestBytes, err := os.ReadFile(imageManifest)
		if err != nil {
			fmt.Printf("failed to read manifest %s: %v\n", imageManifest, err)
			os.Exit(1)
		}

		d, err := driver.NewDriver("docker", nil)
		if err != nil {
			fmt.Printf("failed to initialize docker driver: %v\n", err)
			os.Exit(1)
		}
		defer d.Close()

		engine, ok := d.(driver.ImageInspector)
		if !ok {
			fmt.Println("driver does not support image builds")
			os.Exit(1)
		}

		builder := imagebuilder.New(engine)
		result := builder.Build(context.Background(), imageProjectID, string(manifestBytes))

		if !result.OK {
			fmt.Printf("build failed: %s\n", result.Error)
			os.Exit(1)
		}
		fmt.Printf("built %s (hash %s)\n", result.ImageName, result.Hash)
	},
}

func init() {
	imageBuildCmd.Flags().StringVar(&imageProjectID, "project", "", "project id")
	imageBuildCmd.Flags().StringVar(&imageManifest, "manifest", "requirements.txt", "path to the dependency manifest")
	imageBuildCmd.MarkFlagRequired("project")

	imageCmd.AddCommand(imageBuildCmd)
	RootCmd.AddCommand(imageCmd)
}
