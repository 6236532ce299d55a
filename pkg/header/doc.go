// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

// Package header provides the common envelope for crashcore documents.
//
// Every serialized capture (an on-demand thread snapshot, a blocked event loop
// report, a crash report built from a recovered panic) starts with the same
// Kubernetes-style header:
//
//	{
//	  "kind": "BlockedReport",
//	  "apiVersion": "crashcore.nvidia.com/v1",
//	  "metadata": {
//	    "timestamp": "2025-12-30T10:30:00.123456Z",
//	    "report-id": "4f0c2a8e-...",
//	    "version": "v1.0.0"
//	  }
//	}
//
// Init stamps the timestamp and a random report ID so repeated captures of the
// same process can be told apart downstream.
package header
