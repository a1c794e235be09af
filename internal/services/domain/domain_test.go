// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"strings"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "domain-test")
	require.NoError(t, err)
	return &Client{logger: log}
}

func TestValidateConfigRequiresCoreFields(t *testing.T) {
	c := testClient(t)

	require.Error(t, c.validateConfig(&DomainConfig{}))
	require.Error(t, c.validateConfig(&DomainConfig{Realm: "EXAMPLE.COM"}))
	require.NoError(t, c.validateConfig(&DomainConfig{
		Realm: "EXAMPLE.COM", DCServers: []string{"dc1"}, AdminUser: "admin", AdminPassword: "secret",
	}))
}

func TestValidateConfigRejectsNarrowIdmapRange(t *testing.T) {
	c := testClient(t)
	cfg := &DomainConfig{
		Realm: "EXAMPLE.COM", DCServers: []string{"dc1"}, AdminUser: "admin", AdminPassword: "secret",
		IdmapRangeLow: 10000, IdmapRangeHigh: 15000,
	}
	require.Error(t, c.validateConfig(cfg))

	cfg.IdmapRangeHigh = 30000
	require.NoError(t, c.validateConfig(cfg))

	cfg.IdmapRangeLow, cfg.IdmapRangeHigh = 30000, 10000
	require.Error(t, c.validateConfig(cfg))
}

func TestValidateConfigRejectsHomedirTemplateWithoutUserToken(t *testing.T) {
	c := testClient(t)
	cfg := &DomainConfig{
		Realm: "EXAMPLE.COM", DCServers: []string{"dc1"}, AdminUser: "admin", AdminPassword: "secret",
		HomedirTemplate: "/home/static",
	}
	require.Error(t, c.validateConfig(cfg))

	cfg.HomedirTemplate = "/home/%U"
	require.NoError(t, c.validateConfig(cfg))
}

func TestRenderSMBConfContainsMandatoryDirectives(t *testing.T) {
	cfg := &DomainConfig{
		Realm: "ad.strata.internal", Workgroup: "STRATA",
		IdmapBackend: "ad", IdmapRangeLow: 20000, IdmapRangeHigh: 50000,
		DefaultShell: "/bin/zsh", HomedirTemplate: "/home/%U", OfflineAuth: true, RFC2307: true,
	}
	out := renderSMBConf(cfg)

	require.Contains(t, out, "[global]")
	require.Contains(t, out, "security = ADS")
	require.Contains(t, out, "realm = AD.STRATA.INTERNAL")
	require.Contains(t, out, "workgroup = STRATA")
	require.Contains(t, out, "idmap config * : backend = tdb")
	require.Contains(t, out, "idmap config * : range = 20000-50000")
	require.Contains(t, out, "idmap config STRATA : backend = ad")
	require.Contains(t, out, "idmap config STRATA : range = 20000-50000")
	require.Contains(t, out, "template shell = /bin/zsh")
	require.Contains(t, out, "template homedir = /home/%U")
	require.Contains(t, out, "winbind offline logon = yes")
	require.Contains(t, out, "schema_mode = rfc2307")
	require.Contains(t, out, "kerberos method = secrets and keytab")
	require.Contains(t, out, "dedicated keytab file = /etc/krb5.keytab")
}

func TestRenderSMBConfOmitsOptionalDirectivesByDefault(t *testing.T) {
	out := renderSMBConf(&DomainConfig{Realm: "EXAMPLE.COM"})
	require.NotContains(t, out, "winbind offline logon")
	require.NotContains(t, out, "schema_mode")
	require.Contains(t, out, "idmap config * : range = 10000-999999")
	require.Contains(t, out, "template shell = /bin/bash")
}

func TestRenderChronyConfPointsAtDC(t *testing.T) {
	out := renderChronyConf("dc1.example.com")
	require.True(t, strings.HasPrefix(out, "server dc1.example.com iburst"))
	require.Contains(t, out, "makestep 1.0 3")
	require.Contains(t, out, "rtcsync")
}

func TestSplitNonEmptyLinesDropsBlanks(t *testing.T) {
	got := splitNonEmptyLines("AD\\alice\n\nAD\\bob\n   \nAD\\carol\n")
	require.Equal(t, []string{"AD\\alice", "AD\\bob", "AD\\carol"}, got)
}

func TestExtractQuotedFindsFirstQuotedSubstring(t *testing.T) {
	require.Equal(t, "DC1", extractQuoted(`dc connection to "DC1" succeeded`))
	require.Equal(t, "", extractQuoted("no quotes here"))
	require.Equal(t, "", extractQuoted(`only one quote "`))
}
