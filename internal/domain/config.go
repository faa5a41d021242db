package domain

import "time"

// Duration accepts the human form ("10m", "24h") in the config file;
// a bare number is taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := unmarshal(&n); err != nil {
		return err
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std converts to the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BalanceKind selects which column of the sidechain token record
// qualifies a holder.
type BalanceKind string

const (
	BalanceStaked BalanceKind = "stake"
	BalanceLiquid BalanceKind = "balance"
)

// Curation holds the governance policy for the community.
type Curation struct {
	// Account is the dispatching ledger account; votes are cast and
	// verification transfers are received by it.
	Account string `yaml:"account"`
	// PostingWIF is the account's posting key in wallet import format.
	PostingWIF string `yaml:"postingWIF"`

	TokenSymbol string      `yaml:"tokenSymbol"`
	BalanceKind BalanceKind `yaml:"balanceKind"` // stake or balance
	// MinTokens is the privilege threshold.
	MinTokens float64 `yaml:"minTokens"`
	// TokensPerPercent converts a balance into a vote percentage.
	TokensPerPercent float64 `yaml:"tokensPerPercent"`
	// RequiredTag, when set, must appear on the target content.
	RequiredTag string `yaml:"requiredTag"`
	// VoteComments permits endorsing non-top-level content.
	VoteComments bool `yaml:"voteComments"`
	// WindowHours is the maximum target age.
	WindowHours int `yaml:"windowHours"`
}

// Chat identifies the governed community on the chat platform.
type Chat struct {
	APIEndpoint string `yaml:"apiEndpoint"`
	Token       string `yaml:"token"`
	GuildID     string `yaml:"guildID"`
	ChannelID   string `yaml:"channelID"`
	RoleID      string `yaml:"roleID"`
}

// Server holds process-level settings.
type Server struct {
	ListenAddr    string `yaml:"listenAddr"`
	NodeURL       string `yaml:"nodeURL"`
	SidechainURL  string `yaml:"sidechainURL"`
	StorePath     string `yaml:"storePath"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	// WebhookSecret, when set, is required as a bearer token on the
	// ingress endpoints.
	WebhookSecret string `yaml:"webhookSecret"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

// Tuning bounds the external-call behavior. Zero values are replaced
// with defaults at load time so none of these live in code as magic
// constants.
type Tuning struct {
	// LookbackWindow bounds the transfer-history scan and is the
	// implicit challenge TTL.
	LookbackWindow Duration `yaml:"lookbackWindow"`
	// ReconcileInterval is the role-sync schedule.
	ReconcileInterval Duration `yaml:"reconcileInterval"`
	// RoleThrottle is the pause after each role mutation.
	RoleThrottle Duration `yaml:"roleThrottle"`
	// HolderPageSize and HolderMaxPages bound the holder traversal.
	HolderPageSize int `yaml:"holderPageSize"`
	HolderMaxPages int `yaml:"holderMaxPages"`
	// SessionTimeout expires inactive verification sessions.
	SessionTimeout Duration `yaml:"sessionTimeout"`
}

type Config struct {
	Curation Curation `yaml:"curation"`
	Chat     Chat     `yaml:"chat"`
	Server   Server   `yaml:"server"`
	Tuning   Tuning   `yaml:"tuning"`
}
