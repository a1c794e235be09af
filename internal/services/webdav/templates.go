// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package webdav

import (
	"fmt"
	"strings"
)

// renderVhost produces the full text of a share's nginx configuration
// fragment: a file-scope lock-zone preamble (plus a rate-limit zone when
// RateLimitRPS is set) followed by a single server{} block, per spec.md
// §4.6's bullet list.
func renderVhost(s *Share, htpasswdDir, clientBodyTempDir string) string {
	var preamble strings.Builder
	preamble.WriteString(fmt.Sprintf("dav_ext_lock_zone zone=webdav_lock_%s:10m;\n", s.ID))
	if s.RateLimitRPS > 0 {
		preamble.WriteString(fmt.Sprintf(
			"limit_req_zone $binary_remote_addr zone=webdav_%s:10m rate=%dr/s;\n", s.ID, s.RateLimitRPS))
	}
	preamble.WriteString("\n")

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# WebDAV share: %s (%s)\n", s.Name, s.ID))
	b.WriteString("# Managed by Horcrux — do not edit manually\n\n")
	b.WriteString("server {\n")

	listenMod := ""
	if s.SSL.Enabled {
		listenMod = " ssl http2"
	}
	b.WriteString(fmt.Sprintf("    listen %d%s;\n", s.ListenPort, listenMod))
	b.WriteString(fmt.Sprintf("    listen [::]:%d%s;\n", s.ListenPort, listenMod))

	serverName := s.ServerName
	if serverName == "" {
		serverName = "_"
	}
	b.WriteString(fmt.Sprintf("    server_name %s;\n\n", serverName))

	if s.SSL.Enabled {
		writeSSLStanza(&b, s)
	}

	if s.AccessLog {
		logPath := s.AccessLogPath
		if logPath == "" {
			logPath = fmt.Sprintf("/var/log/nginx/webdav-%s.access.log", s.ID)
		}
		b.WriteString(fmt.Sprintf("    access_log %s combined;\n", logPath))
	} else {
		b.WriteString("    access_log off;\n")
	}
	b.WriteString(fmt.Sprintf("    error_log /var/log/nginx/webdav-%s.error.log;\n\n", s.ID))

	writeLocation(&b, s, "/webdav/"+s.ID, s.Path, htpasswdDir, clientBodyTempDir, true)

	if s.DavExt != nil {
		if s.DavExt.CalDAVEnabled {
			writeLocation(&b, s, s.DavExt.CalDAVPath, s.Path+"/calendars", htpasswdDir, clientBodyTempDir, false)
		}
		if s.DavExt.CardDAVEnabled {
			writeLocation(&b, s, s.DavExt.CardDAVPath, s.Path+"/contacts", htpasswdDir, clientBodyTempDir, false)
		}
	}

	b.WriteString("}\n")

	if s.AuthMode == AuthLDAP && s.LDAP != nil {
		writeLDAPServer(&b, s)
	}

	return preamble.String() + b.String()
}

func writeSSLStanza(b *strings.Builder, s *Share) {
	b.WriteString(fmt.Sprintf("    ssl_certificate %s;\n", s.SSL.Certificate))
	b.WriteString(fmt.Sprintf("    ssl_certificate_key %s;\n", s.SSL.CertificateKey))
	if s.SSL.CAChain != "" {
		b.WriteString(fmt.Sprintf("    ssl_trusted_certificate %s;\n", s.SSL.CAChain))
	}

	minVersion := s.SSL.MinTLSVersion
	if minVersion == "" {
		minVersion = "TLSv1.2"
	}
	b.WriteString(fmt.Sprintf("    ssl_protocols %s TLSv1.3;\n", minVersion))

	if s.SSL.Ciphers != "" {
		b.WriteString(fmt.Sprintf("    ssl_ciphers %s;\n", s.SSL.Ciphers))
	} else {
		b.WriteString("    ssl_ciphers ECDHE-ECDSA-AES128-GCM-SHA256:ECDHE-RSA-AES128-GCM-SHA256:ECDHE-ECDSA-AES256-GCM-SHA384:ECDHE-RSA-AES256-GCM-SHA384;\n")
	}
	b.WriteString("    ssl_prefer_server_ciphers on;\n")
	b.WriteString("    ssl_session_cache shared:SSL:10m;\n")
	b.WriteString("    ssl_session_timeout 1d;\n")
	b.WriteString("    ssl_session_tickets off;\n")

	if s.SSL.HSTSEnabled {
		b.WriteString(fmt.Sprintf("    add_header Strict-Transport-Security \"max-age=%d\" always;\n", s.SSL.HSTSMaxAge))
	}
	b.WriteString("\n")
}

// writeLocation emits one location block. primary=true adds the features
// only the share's main location gets (lock zone, rate limiting, body size,
// custom directives); CalDAV/CardDAV sub-locations only add REPORT + basic
// auth passthrough, per spec.md.
func writeLocation(b *strings.Builder, s *Share, path, alias, htpasswdDir, clientBodyTempDir string, primary bool) {
	b.WriteString(fmt.Sprintf("    location %s {\n", path))
	b.WriteString(fmt.Sprintf("        alias %s;\n\n", alias))

	extMethods := "PROPFIND OPTIONS LOCK UNLOCK"
	if !primary {
		extMethods += " REPORT"
	}
	b.WriteString("        dav_methods PUT DELETE MKCOL COPY MOVE;\n")
	b.WriteString(fmt.Sprintf("        dav_ext_methods %s;\n", extMethods))
	b.WriteString("        dav_access user:rw group:rw all:r;\n")
	b.WriteString("        create_full_put_path on;\n\n")

	if primary && s.Autoindex {
		b.WriteString("        autoindex on;\n")
		b.WriteString("        autoindex_format json;\n")
		b.WriteString("        autoindex_exact_size off;\n")
		b.WriteString("        autoindex_localtime on;\n\n")
	}

	writeAuthStanza(b, s, htpasswdDir, primary)

	if primary {
		if s.RateLimitRPS > 0 {
			b.WriteString(fmt.Sprintf("        limit_req zone=webdav_%s burst=50 nodelay;\n\n", s.ID))
		}

		if s.MaxUploadBytes > 0 {
			b.WriteString(fmt.Sprintf("        client_max_body_size %d;\n", s.MaxUploadBytes))
		} else {
			b.WriteString("        client_max_body_size 0;\n")
		}
		b.WriteString(fmt.Sprintf("        client_body_temp_path %s;\n\n", clientBodyTempDir))
		b.WriteString(fmt.Sprintf("        dav_ext_lock zone=webdav_lock_%s;\n\n", s.ID))

		if s.CustomDirectives != "" {
			b.WriteString("        # Custom directives\n")
			for _, line := range strings.Split(s.CustomDirectives, "\n") {
				b.WriteString("        " + line + "\n")
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("    }\n")
}

func writeAuthStanza(b *strings.Builder, s *Share, htpasswdDir string, primary bool) {
	label := s.Name
	if !primary {
		label = "DAV - " + s.Name
	}

	switch s.AuthMode {
	case AuthNone:
		// no auth directives
	case AuthBasic:
		b.WriteString(fmt.Sprintf("        auth_basic \"WebDAV - %s\";\n", label))
		b.WriteString(fmt.Sprintf("        auth_basic_user_file %s/%s;\n\n", htpasswdDir, htpasswdFileName(s.ID)))
	case AuthDigest:
		b.WriteString(fmt.Sprintf("        auth_digest \"WebDAV - %s\";\n", label))
		b.WriteString(fmt.Sprintf("        auth_digest_user_file %s/%s.digest;\n\n", htpasswdDir, htpasswdFileName(s.ID)))
	case AuthLDAP:
		if primary {
			b.WriteString("        auth_ldap \"WebDAV LDAP Authentication\";\n")
			b.WriteString(fmt.Sprintf("        auth_ldap_servers ldap_%s;\n\n", s.ID))
		}
	case AuthPAM:
		if primary {
			b.WriteString("        auth_pam \"WebDAV\";\n")
			b.WriteString("        auth_pam_service_name \"nginx\";\n\n")
		}
	}
}

func writeLDAPServer(b *strings.Builder, s *Share) {
	l := s.LDAP
	b.WriteString(fmt.Sprintf("\n# LDAP server for share %s\n", s.ID))
	b.WriteString(fmt.Sprintf("ldap_server ldap_%s {\n", s.ID))
	b.WriteString(fmt.Sprintf("    url %s;\n", l.URL))
	if l.BindDN != "" {
		b.WriteString(fmt.Sprintf("    binddn \"%s\";\n", l.BindDN))
	}
	if l.BindPassword != "" {
		b.WriteString(fmt.Sprintf("    binddn_passwd \"%s\";\n", l.BindPassword))
	}
	b.WriteString(fmt.Sprintf("    base_dn \"%s\";\n", l.BaseDN))
	b.WriteString(fmt.Sprintf("    filter \"%s\";\n", l.SearchFilter))
	if l.RequireGroup != "" {
		b.WriteString(fmt.Sprintf("    require_group \"%s\";\n", l.RequireGroup))
	}
	if l.StartTLS {
		b.WriteString("    starttls on;\n")
	}
	timeout := l.TimeoutSecond
	if timeout == 0 {
		timeout = 10
	}
	b.WriteString(fmt.Sprintf("    connect_timeout %ds;\n", timeout))
	b.WriteString("}\n")
}
