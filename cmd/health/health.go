/*
 * Copyright 2024 Raamsri Kumar <raam@tinkershack.in> and The StrataSTOR Authors
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

package health

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratastor/horcrux/internal/common"
	"github.com/stratastor/horcrux/internal/services/manager"
)

func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check Horcrux health",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcMgr, err := manager.NewServiceManager(common.Log)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer svcMgr.Close()

			ctx := context.Background()

			joined, detail, err := svcMgr.Domain().Status(ctx)
			if err != nil {
				fmt.Printf("AD status: error - %v\n", err)
			} else {
				fmt.Printf("AD status: joined=%t (%s)\n", joined, detail)
			}

			webdavStatus, err := svcMgr.WebDAV().GetStatus(ctx)
			if err != nil {
				fmt.Printf("WebDAV status: error - %v\n", err)
			} else {
				fmt.Printf("WebDAV status: nginx_running=%t shares=%d ssl_shares=%d\n",
					webdavStatus.NginxRunning, webdavStatus.ConfiguredShares, webdavStatus.SSLEnabledShares)
			}

			for unit, state := range svcMgr.UnitStatuses(ctx) {
				fmt.Printf("Unit %s: %s\n", unit, state)
			}

			return nil
		},
	}
}
