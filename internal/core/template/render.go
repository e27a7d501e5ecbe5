package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// Artifact Renderers
// =============================================================================
//
// Every renderer is a pure function of the deployment record and (for medium
// interaction) the template, so the artifacts can be regenerated verbatim
// from the registry at any time.

// defaultSSHVersion is the banner presented when a template sets none.
const defaultSSHVersion = "SSH-2.0-OpenSSH_7.9p1 Debian-10+deb10u2"

// DefaultAccounts returns the logins accepted by a default-mode deployment.
func DefaultAccounts() []domain.Account {
	return []domain.Account{
		{Username: "root", Password: "123456", UID: 0, GID: 0, Home: "/root", Shell: "/bin/bash", Gecos: "root"},
		{Username: "admin", Password: "admin123", UID: 1000, GID: 1000, Home: "/home/admin", Shell: "/bin/bash", Gecos: "admin"},
	}
}

// RenderCowrieConfig renders the emulator configuration for a deployment.
// Ports in the config are container-side; the host-side bindings live in the
// generated Compose manifest.
func RenderCowrieConfig(d *domain.Deployment, settings domain.TemplateSettings) string {
	hostname := settings.Hostname
	if hostname == "" {
		hostname = d.Hostname
	}
	version := settings.SSHBanner
	if version == "" {
		version = defaultSSHVersion
	}
	telnet := "false"
	if d.Ports.Telnet != 0 {
		telnet = "true"
	}

	var b strings.Builder
	b.WriteString("[honeypot]\n")
	fmt.Fprintf(&b, "hostname = %s\n", hostname)
	b.WriteString("log_path = var/log/cowrie\n")
	b.WriteString("download_path = var/lib/cowrie/downloads\n")
	b.WriteString("contents_path = honeyfs\n")
	b.WriteString("ttylog_path = var/log/cowrie/tty\n")
	b.WriteString("auth_class = UserDB\n")
	b.WriteString("auth_class_parameters = userdb.txt\n")
	b.WriteString("\n[shell]\n")
	b.WriteString("filesystem = share/cowrie/fs.pickle\n")
	b.WriteString("processes = etc/cmdoutput.json\n")
	b.WriteString("\n[ssh]\n")
	b.WriteString("enabled = true\n")
	b.WriteString("ed25519_public_key = var/lib/cowrie/keys/ssh_host_ed25519_key.pub\n")
	b.WriteString("ed25519_private_key = var/lib/cowrie/keys/ssh_host_ed25519_key\n")
	b.WriteString("listen_endpoints = tcp:2222:interface=0.0.0.0\n")
	fmt.Fprintf(&b, "version = %s\n", version)
	b.WriteString("\n[telnet]\n")
	fmt.Fprintf(&b, "enabled = %s\n", telnet)
	b.WriteString("listen_endpoints = tcp:2223:interface=0.0.0.0\n")
	b.WriteString("\n[output_jsonlog]\n")
	b.WriteString("logfile = var/log/cowrie/cowrie.json\n")
	b.WriteString("epoch_timestamp = false\n")
	return b.String()
}

// RenderUserDB renders the credential file the emulator authenticates
// against, one "user:x:password" row per account, in account order.
func RenderUserDB(accounts []domain.Account) string {
	var b strings.Builder
	for _, acct := range accounts {
		fmt.Fprintf(&b, "%s:x:%s\n", acct.Username, acct.Password)
	}
	return b.String()
}

// RenderCommandOutputs renders the canned command output file in the
// emulator's own format: a single top-level "command" object keyed by
// command name, then by argument string. Keys are sorted by the JSON
// encoder, so the output is deterministic.
func RenderCommandOutputs(commands []domain.CommandOverride) (string, error) {
	outputs := make(map[string]map[string]string, len(commands))
	for _, cmd := range commands {
		outputs[cmd.Name] = cmd.Outputs
	}

	doc := struct {
		Commands map[string]map[string]string `json:"command"`
	}{Commands: outputs}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render command outputs: %w", err)
	}
	return string(out) + "\n", nil
}

// standardPasswdRows are the system accounts every rendered passwd carries
// before the template's own accounts.
var standardPasswdRows = []string{
	"root:x:0:0:root:/root:/bin/bash",
	"daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin",
	"bin:x:2:2:bin:/bin:/usr/sbin/nologin",
	"sys:x:3:3:sys:/dev:/usr/sbin/nologin",
	"www-data:x:33:33:www-data:/var/www:/usr/sbin/nologin",
	"sshd:x:110:65534::/run/sshd:/usr/sbin/nologin",
}

// RenderPasswd renders the /etc/passwd visible inside the emulated
// filesystem. A template account named root replaces the standard root row.
func RenderPasswd(accounts []domain.Account) string {
	rows := make([]string, 0, len(standardPasswdRows)+len(accounts))
	override := make(map[string]bool, len(accounts))
	for _, acct := range accounts {
		override[acct.Username] = true
	}

	for _, row := range standardPasswdRows {
		name := row[:strings.Index(row, ":")]
		if !override[name] {
			rows = append(rows, row)
		}
	}
	for _, acct := range accounts {
		rows = append(rows, fmt.Sprintf("%s:x:%d:%d:%s:%s:%s",
			acct.Username, acct.UID, acct.GID, acct.Gecos, acct.Home, acct.Shell))
	}

	return strings.Join(rows, "\n") + "\n"
}

// RenderLogstashPipeline renders the pipeline that ships emulator events to
// the per-deployment index.
func RenderLogstashPipeline(deploymentName string) string {
	index := domain.LogIndex(deploymentName)
	var b strings.Builder
	b.WriteString("input {\n")
	b.WriteString("  beats {\n")
	b.WriteString("    port => 5044\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("filter {\n")
	b.WriteString("  json {\n")
	b.WriteString("    source => \"message\"\n")
	b.WriteString("  }\n")
	b.WriteString("  date {\n")
	b.WriteString("    match => [ \"timestamp\", \"ISO8601\" ]\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("output {\n")
	b.WriteString("  elasticsearch {\n")
	b.WriteString("    hosts => [\"http://elasticsearch:9200\"]\n")
	fmt.Fprintf(&b, "    index => \"%s-%%{+yyyy.MM.dd}\"\n", index)
	b.WriteString("  }\n")
	b.WriteString("}\n")
	return b.String()
}

// RenderFilebeatConfig renders the shipper config that tails the emulator's
// JSON log and forwards it to logstash.
func RenderFilebeatConfig() string {
	var b strings.Builder
	b.WriteString("filebeat.inputs:\n")
	b.WriteString("  - type: log\n")
	b.WriteString("    enabled: true\n")
	b.WriteString("    paths:\n")
	b.WriteString("      - /var/log/cowrie/cowrie.json*\n")
	b.WriteString("\n")
	b.WriteString("output.logstash:\n")
	b.WriteString("  hosts: [\"logstash:5044\"]\n")
	b.WriteString("\n")
	b.WriteString("logging.to_files: false\n")
	return b.String()
}

// RenderHostnameFile renders the /etc/hostname seen inside the emulated
// filesystem.
func RenderHostnameFile(hostname string) string {
	return hostname + "\n"
}
