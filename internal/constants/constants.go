/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package constants

const (
	HorcruxVersion     = "v0.1.0"
	HorcruxPIDFilePath = "/var/run/horcrux.pid"

	// config
	SystemConfigDir = "/etc/horcrux"
	UserConfigDir   = "~/.horcrux"
	ConfigFileName  = "horcrux.yml"
	StateFileName   = "horcrux_state.yml"
)

// Version, CommitSHA and BuildTime are overridden at build time via
// -ldflags "-X .../internal/constants.Version=...". They default to
// HorcruxVersion and "unknown" for local go run/go build invocations.
var (
	Version   = HorcruxVersion
	CommitSHA = "unknown"
	BuildTime = "unknown"
)
