/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


// The logaudit tool independently audits an exported transparency log using
// only the export and the log's public key.
package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"k8s.io/klog"
)

var (
	exportFile     = pflag.String("export_file", "", "File containing the exported transparency log.")
	pubKeyFile     = pflag.String("log_pubkey_file", "", "File containing the log's public key in note verifier format.")
	checkpointFile = pflag.String("checkpoint_file", "", "Optional file containing a checkpoint to check the export against.")
	outputFile     = pflag.String("output_file", "", "File to write the audit report to; defaults to stdout.")
)

func main() {
	pflag.Parse()

	if *exportFile == "" || *pubKeyFile == "" {
		klog.Exitf("--export_file and --log_pubkey_file are required")
	}

	export := readFileOrDie(*exportFile, "export")
	publicKey := strings.TrimSpace(string(readFileOrDie(*pubKeyFile, "public key")))

	var checkpoint []byte
	if *checkpointFile != "" {
		checkpoint = readFileOrDie(*checkpointFile, "checkpoint")
	}

	result, err := auditLog(export, publicKey, checkpoint)
	if err != nil {
		klog.Exitf("Audit failed: %v", err)
	}

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		klog.Exitf("Failed to encode audit report: %v", err)
	}
	raw = append(raw, '\n')

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, raw, 0644); err != nil {
			klog.Exitf("WriteFile: %v", err)
		}
	} else {
		os.Stdout.Write(raw)
	}

	if !result.Valid {
		klog.Exitf("Log audit found %d invalid entries", result.InvalidEntries)
	}
	klog.Infof("Audited %d entries; log is consistent", result.Report.Size)
}

func readFileOrDie(p, thing string) []byte {
	raw, err := os.ReadFile(p)
	if err != nil {
		klog.Exitf("Failed to read %s file %q: %v", thing, p, err)
	}
	return raw
}
