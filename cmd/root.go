// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clusterfs/clusterfs/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
)

var rootCmd = &cobra.Command{
	Use:   "clusterfs [flags] bucket mount_point",
	Short: "Mount a clusterfs bucket as a local POSIX filesystem",
	Long: `clusterfs mounts an object-store bucket as a local POSIX filesystem,
sharding directory ownership across a cluster of clients via time-bounded
leases handed out by a coordinator.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}

		bucket, mountPoint, err := populateArgs(args)
		if err != nil {
			return err
		}

		c, err := cfg.Resolve(bucket, mountPoint)
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}

		return runMount(cmd.Context(), c)
	},
}

func populateArgs(args []string) (bucket, mountPoint string, err error) {
	bucket = args[0]
	mountPoint, err = filepath.Abs(args[1])
	if err != nil {
		return "", "", fmt.Errorf("canonicalizing mount point: %w", err)
	}
	return bucket, mountPoint, nil
}

// Execute runs the root command, used by the top-level main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(coordinatorCmd)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file")
	cobra.OnInitialize(initConfig)
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	resolved, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
	}
}
