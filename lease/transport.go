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
package lease

import "net/rpc"

// RPCTransport is the production Transport: it dials the coordinator fresh
// for every call rather than holding a long-lived connection, so a
// coordinator restart never leaves a client stuck on a dead socket.
type RPCTransport struct {
	CoordinatorAddr string
}

func (t *RPCTransport) Acquire(req AcquireRequest) (AcquireResponse, error) {
	client, err := rpc.Dial("tcp", t.CoordinatorAddr)
	if err != nil {
		return AcquireResponse{}, err
	}
	defer client.Close()

	var resp AcquireResponse
	if err := client.Call("CoordinatorService.Acquire", &req, &resp); err != nil {
		return AcquireResponse{}, err
	}
	return resp, nil
}
