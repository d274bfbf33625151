package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/maimaibot",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		MCP: MCPConfig{
			ProtocolVersion: "2025-06-18",
			TimeoutSeconds:  30,
		},
		Cache: CacheConfig{
			TTLSeconds:     300,
			CacheableTools: "calendar,profile,record",
		},
		Claim: ClaimConfig{
			Tool:          "claim_coupon",
			SweepMinutes:  15,
			ThresholdHour: 6,
			Timezone:      "Asia/Shanghai",
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# MaiMaiBot System Configuration
# Location: ~/.config/maimaibot/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the credential database and user config are stored
data_directory = "~/.local/share/maimaibot"
`
}

func GenerateUserConfigTemplate() string {
	return `# MaiMaiBot Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[mcp]
# Base URL of the remote tool service
server_url = ""

# MCP protocol version declared on every request
protocol_version = "2025-06-18"

# Per-call transport timeout in seconds
timeout_seconds = 30

[cache]
# How long a cached tool result stays fresh
ttl_seconds = 300

# Comma-separated tool names whose results may be cached.
# Never list a mutating tool here.
cacheable_tools = "calendar,profile,record"

[claim]
# The tool invoked automatically once per user per day
tool = "claim_coupon"

# Minutes between scheduler sweeps
sweep_minutes = 15

# Local hour (0-23) before which no claim is attempted
threshold_hour = 6

# IANA time zone used for the daily rollover
timezone = "Asia/Shanghai"

[storage]
# Optional file holding the passphrase used to encrypt stored tokens.
# Leave empty to store tokens in plain text.
passphrase_file = ""
`
}
