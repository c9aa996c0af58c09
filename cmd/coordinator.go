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
	"net"
	"net/rpc"

	"github.com/spf13/cobra"

	"github.com/clusterfs/clusterfs/internal/clock"
	"github.com/clusterfs/clusterfs/internal/logger"
	"github.com/clusterfs/clusterfs/lease"
)

var coordinatorListenAddr string

// coordinatorCmd runs the standalone lease coordinator described in
// spec.md §4.2: a single process handing out time-bounded directory
// leases over net/rpc, with no dependency on the object store or any
// mounted filesystem.
var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Run the lease coordinator",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCoordinator(coordinatorListenAddr)
	},
}

func init() {
	coordinatorCmd.Flags().StringVar(&coordinatorListenAddr, "listen", ":9090", "Address to accept lease RPCs on")
}

func runCoordinator(addr string) error {
	log := logger.Default("coordinator")

	table := lease.NewTable(clock.RealClock{})
	service := &lease.CoordinatorService{Table: table}

	server := rpc.NewServer()
	if err := server.RegisterName("CoordinatorService", service); err != nil {
		return fmt.Errorf("registering coordinator service: %w", err)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	defer listener.Close()

	log.Info("coordinator listening", "addr", addr)
	server.Accept(listener)
	return nil
}
