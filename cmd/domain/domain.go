/*
 * Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2025 The StrataSTOR Authors and Contributors
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

package domain

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/stratastor/logger"
	"github.com/stratastor/horcrux/config"
	"github.com/stratastor/horcrux/internal/services/domain"
)

func NewDomainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Manage Active Directory domain membership",
		Long:  `Join, leave, or check status of Active Directory domain membership`,
	}

	cmd.AddCommand(newJoinCmd())
	cmd.AddCommand(newLeaveCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newUsersCmd())
	cmd.AddCommand(newGroupsCmd())
	cmd.AddCommand(newUserGroupsCmd())
	cmd.AddCommand(newAuthenticateCmd())
	cmd.AddCommand(newSIDToUIDCmd())
	cmd.AddCommand(newUIDToSIDCmd())
	cmd.AddCommand(newTrustCmd())
	cmd.AddCommand(newPingCmd())
	cmd.AddCommand(newRotatePasswordCmd())
	cmd.AddCommand(newDNSCmd())
	cmd.AddCommand(newKeytabCmd())

	return cmd
}

func newDomainClient() (*domain.Client, logger.Logger) {
	cfg := config.GetConfig()
	logCfg := config.NewLoggerConfig(cfg)
	l, err := logger.NewTag(logCfg, "domain")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	client, err := domain.NewClient(l)
	if err != nil {
		l.Error("Failed to create domain client", "error", err)
		os.Exit(1)
	}

	return client, l
}

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List domain users",
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			users, err := client.ListUsers(context.Background())
			if err != nil {
				l.Error("Failed to list users", "error", err)
				os.Exit(1)
			}
			for _, u := range users {
				fmt.Println(u)
			}
		},
	}
}

func newGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List domain groups",
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			groups, err := client.ListGroups(context.Background())
			if err != nil {
				l.Error("Failed to list groups", "error", err)
				os.Exit(1)
			}
			for _, g := range groups {
				fmt.Println(g)
			}
		},
	}
}

func newUserGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user-groups <user>",
		Short: "List the groups a domain user belongs to",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			groups, err := client.GetUserGroups(context.Background(), args[0])
			if err != nil {
				l.Error("Failed to get user groups", "user", args[0], "error", err)
				os.Exit(1)
			}
			for _, g := range groups {
				fmt.Println(g)
			}
		},
	}
}

func newAuthenticateCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "authenticate <user>",
		Short: "Check a domain user's credentials",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			ok, err := client.Authenticate(context.Background(), args[0], password)
			if err != nil {
				l.Error("Authentication check failed", "user", args[0], "error", err)
				os.Exit(1)
			}
			if ok {
				fmt.Println("authenticated: true")
			} else {
				fmt.Println("authenticated: false")
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password to check")
	return cmd
}

func newSIDToUIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sid-to-uid <sid>",
		Short: "Resolve a SID to a numeric uid",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			uid, err := client.SIDToUID(context.Background(), args[0])
			if err != nil {
				l.Error("sid_to_uid failed", "sid", args[0], "error", err)
				os.Exit(1)
			}
			fmt.Println(uid)
		},
	}
}

func newUIDToSIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uid-to-sid <uid>",
		Short: "Resolve a numeric uid to a SID",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			uid, err := strconv.Atoi(args[0])
			if err != nil {
				l.Error("invalid uid", "uid", args[0], "error", err)
				os.Exit(1)
			}
			sid, err := client.UIDToSID(context.Background(), uid)
			if err != nil {
				l.Error("uid_to_sid failed", "uid", args[0], "error", err)
				os.Exit(1)
			}
			fmt.Println(sid)
		},
	}
}

func newTrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust",
		Short: "Check domain trust relationship validity",
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			status, err := client.TestTrust(context.Background())
			if err != nil {
				l.Error("test_trust failed", "error", err)
				os.Exit(1)
			}
			fmt.Printf("secret_valid: %v\ndc_reachable: %v\n", status.SecretValid, status.DCReachable)
		},
	}
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ping the domain controller",
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			result, err := client.PingDC(context.Background())
			if err != nil {
				l.Error("ping_dc failed", "error", err)
				os.Exit(1)
			}
			fmt.Printf("success: %v\nlatency_ms: %d\ndc_name: %s\n", result.Success, result.LatencyMs, result.DCName)
		},
	}
}

func newRotatePasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-password",
		Short: "Rotate this host's machine account password",
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			if err := client.RotateMachinePassword(context.Background()); err != nil {
				l.Error("Failed to rotate machine password", "error", err)
				os.Exit(1)
			}
			fmt.Println("Machine account password rotated")
		},
	}
}

func newDNSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dns",
		Short: "Manage this host's AD-integrated DNS record",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register",
		Short: "Register this host's DNS record with the domain controller",
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			if err := client.RegisterDNS(context.Background()); err != nil {
				l.Error("register_dns failed", "error", err)
				os.Exit(1)
			}
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "unregister",
		Short: "Remove this host's DNS record from the domain controller",
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			if err := client.UnregisterDNS(context.Background()); err != nil {
				l.Error("unregister_dns failed", "error", err)
				os.Exit(1)
			}
		},
	})
	return cmd
}

func newKeytabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keytab",
		Short: "Manage this host's Kerberos keytab",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create [path]",
		Short: "Create a keytab",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			client, l := newDomainClient()
			if err := client.CreateKeytab(context.Background(), path); err != nil {
				l.Error("create_keytab failed", "error", err)
				os.Exit(1)
			}
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <principal>",
		Short: "Add a principal to the keytab",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			if err := client.AddKeytabPrincipal(context.Background(), args[0]); err != nil {
				l.Error("add_keytab_principal failed", "principal", args[0], "error", err)
				os.Exit(1)
			}
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List keytab principals",
		Run: func(cmd *cobra.Command, args []string) {
			client, l := newDomainClient()
			principals, err := client.ListKeytabPrincipals(context.Background())
			if err != nil {
				l.Error("list_keytab_principals failed", "error", err)
				os.Exit(1)
			}
			for _, p := range principals {
				fmt.Println(p)
			}
		},
	})
	return cmd
}

func newJoinCmd() *cobra.Command {
	var (
		realm         string
		dcServers     []string
		adminUser     string
		adminPassword string
		waitTimeout   int
	)

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join the host to an Active Directory domain",
		Long:  `Join this host to an Active Directory domain using the specified credentials`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			// Setup logger
			cfg := config.GetConfig()
			logCfg := config.NewLoggerConfig(cfg)
			l, err := logger.NewTag(logCfg, "domain")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
				os.Exit(1)
			}

			// Create domain client
			client, err := domain.NewClient(l)
			if err != nil {
				l.Error("Failed to create domain client", "error", err)
				os.Exit(1)
			}

			// Get configuration
			var domainCfg *domain.DomainConfig
			if realm != "" {
				// Use command-line parameters
				domainCfg = &domain.DomainConfig{
					Realm:         realm,
					DCServers:     dcServers,
					AdminUser:     adminUser,
					AdminPassword: adminPassword,
				}
			} else {
				// Use global configuration
				domainCfg = domain.GetConfigFromGlobal()
			}

			// Wait for DC to be ready if specified
			if waitTimeout > 0 && len(domainCfg.DCServers) > 0 {
				l.Info("Waiting for domain controller to be ready...",
					"dc", domainCfg.DCServers[0],
					"timeout", waitTimeout)
				if err := client.WaitForDC(ctx, domainCfg.DCServers[0],
					time.Duration(waitTimeout)*time.Second); err != nil {
					l.Warn("Domain controller may not be ready", "error", err)
				} else {
					l.Info("Domain controller is ready")
				}
			}

			// Join domain
			l.Info("Joining domain", "realm", domainCfg.Realm)
			if err := client.Join(ctx, domainCfg); err != nil {
				l.Error("Failed to join domain", "error", err)
				os.Exit(1)
			}

			l.Info("Successfully joined domain", "realm", domainCfg.Realm)
			fmt.Printf("Successfully joined domain: %s\n", domainCfg.Realm)
		},
	}

	cmd.Flags().StringVar(&realm, "realm", "", "AD realm (e.g., AD.CORP.COM)")
	cmd.Flags().StringSliceVar(&dcServers, "dc", []string{}, "Domain controller servers (can be specified multiple times)")
	cmd.Flags().StringVar(&adminUser, "user", "Administrator", "Admin username for domain join")
	cmd.Flags().StringVar(&adminPassword, "password", "", "Admin password for domain join")
	cmd.Flags().IntVar(&waitTimeout, "wait", 0, "Wait for DC to be ready (seconds, 0 = no wait)")

	return cmd
}

func newLeaveCmd() *cobra.Command {
	var (
		adminUser     string
		adminPassword string
	)

	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Leave the Active Directory domain",
		Long:  `Remove this host from the Active Directory domain`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			// Setup logger
			cfg := config.GetConfig()
			logCfg := config.NewLoggerConfig(cfg)
			l, err := logger.NewTag(logCfg, "domain")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
				os.Exit(1)
			}

			// Create domain client
			client, err := domain.NewClient(l)
			if err != nil {
				l.Error("Failed to create domain client", "error", err)
				os.Exit(1)
			}

			// Get configuration
			domainCfg := domain.GetConfigFromGlobal()
			if adminUser != "" {
				domainCfg.AdminUser = adminUser
			}
			if adminPassword != "" {
				domainCfg.AdminPassword = adminPassword
			}

			// Leave domain
			l.Info("Leaving domain")
			if err := client.Leave(ctx, domainCfg); err != nil {
				l.Error("Failed to leave domain", "error", err)
				os.Exit(1)
			}

			l.Info("Successfully left domain")
			fmt.Println("Successfully left domain")
		},
	}

	cmd.Flags().StringVar(&adminUser, "user", "", "Admin username (defaults to config)")
	cmd.Flags().StringVar(&adminPassword, "password", "", "Admin password (defaults to config)")

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check domain membership status",
		Long:  `Check if this host is joined to an Active Directory domain`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			// Setup logger
			cfg := config.GetConfig()
			logCfg := config.NewLoggerConfig(cfg)
			l, err := logger.NewTag(logCfg, "domain")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
				os.Exit(1)
			}

			// Create domain client
			client, err := domain.NewClient(l)
			if err != nil {
				l.Error("Failed to create domain client", "error", err)
				os.Exit(1)
			}

			// Check status
			joined, domainInfo, err := client.Status(ctx)
			if err != nil {
				l.Error("Failed to check domain status", "error", err)
				os.Exit(1)
			}

			if joined {
				fmt.Printf("Domain: %s\n", domainInfo)
				fmt.Println("Status: Joined")
			} else {
				fmt.Println("Status: Not joined to any domain")
			}
		},
	}
}
