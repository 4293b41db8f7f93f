package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the accounts and the
	// webhook subscriptions.
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NodeURLKey is the websocket endpoint of the chain node.
	NodeURLKey = "NODE_URL"
	// EventsURLKey is the url of the Substrate API Sidecar used to resolve
	// the events of finalized extrinsics.
	EventsURLKey = "EVENTS_URL"
	// EventsRateLimitKey is the max number of requests per second to the
	// events source.
	EventsRateLimitKey = "EVENTS_RATE_LIMIT"
	// KeySchemeKey is one of sr25519, ed25519, ecdsa.
	KeySchemeKey = "KEY_SCHEME"
	// SS58PrefixKey is the network prefix of the account addresses.
	SS58PrefixKey = "SS58_PREFIX"
	// TokenDecimalsKey is the number of decimals of the native token, used to
	// convert transfer amounts to plancks.
	TokenDecimalsKey = "TOKEN_DECIMALS"
	// BalancesPalletIndexKey is the index of the balances pallet in the
	// runtime.
	BalancesPalletIndexKey = "BALANCES_PALLET_INDEX"
	// KeepAliveTransferKey selects transfer_keep_alive over
	// transfer_allow_death.
	KeepAliveTransferKey = "KEEP_ALIVE_TRANSFER"
	// MetadataHashExtensionKey must be enabled for runtimes using the
	// CheckMetadataHash signed extension.
	MetadataHashExtensionKey = "METADATA_HASH_EXTENSION"
	// ScryptLogNKey is the log2 of the scrypt cost parameter used to encrypt
	// new accounts.
	ScryptLogNKey = "SCRYPT_LOG_N"
	// TxTimeoutKey is the max duration of a transaction before it's failed.
	// Zero means no timeout.
	TxTimeoutKey = "TX_TIMEOUT"
	// TxRetentionKey is how long terminated transactions are kept in memory
	// before being forgotten. Zero keeps them until explicitly forgotten.
	TxRetentionKey = "TX_RETENTION"
	// HTTPListeningAddressKey is the IP address where the HTTP interface
	// listens on, loopback by default.
	HTTPListeningAddressKey = "HTTP_LISTENING_ADDRESS"
	// HTTPListeningPortKey is the port where the HTTP interface listens on.
	HTTPListeningPortKey = "HTTP_LISTENING_PORT"
	// CORSAllowedOriginsKey is the list of origins allowed to use the HTTP
	// interface from a browser.
	CORSAllowedOriginsKey = "CORS_ALLOWED_ORIGINS"
	// InMemoryDBKey makes the daemon use a non persistent store.
	InMemoryDBKey = "IN_MEMORY_DB"
	// DBTypeKey is the account store backend, one of badger, postgres.
	DBTypeKey = "DB_TYPE"
	// PgDataSourceURLKey is the connection url of the postgres account store.
	PgDataSourceURLKey = "PG_DATA_SOURCE_URL"
	// WebhookTimeoutKey is the timeout of webhook requests.
	WebhookTimeoutKey = "WEBHOOK_TIMEOUT"
	// StatsIntervalKey defines interval for printing memory statistics, 0
	// disables them.
	StatsIntervalKey = "STATS_INTERVAL"

	DbLocation     = "db"
	PubSubLocation = "pubsub"

	DbTypeBadger   = "badger"
	DbTypePostgres = "postgres"
	DbTypeInMemory = "inmemory"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("shivarthu-signer", false)

// InitConfig loads the config from the SIGNER_ prefixed env vars. Overrides,
// eg. command line flags, take precedence over env and defaults.
func InitConfig(overrides map[string]string) error {
	vip = viper.New()
	vip.SetEnvPrefix("SIGNER")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(NodeURLKey, "ws://127.0.0.1:9944")
	vip.SetDefault(EventsURLKey, "http://127.0.0.1:8080")
	vip.SetDefault(EventsRateLimitKey, 10)
	vip.SetDefault(KeySchemeKey, wallet.SchemeSr25519.String())
	vip.SetDefault(SS58PrefixKey, wallet.DefaultSS58Prefix)
	vip.SetDefault(TokenDecimalsKey, 12)
	vip.SetDefault(BalancesPalletIndexKey, 4)
	vip.SetDefault(KeepAliveTransferKey, true)
	vip.SetDefault(MetadataHashExtensionKey, false)
	vip.SetDefault(ScryptLogNKey, 18)
	vip.SetDefault(TxTimeoutKey, 0)
	vip.SetDefault(TxRetentionKey, time.Hour)
	vip.SetDefault(HTTPListeningAddressKey, "127.0.0.1")
	vip.SetDefault(HTTPListeningPortKey, 9955)
	vip.SetDefault(CORSAllowedOriginsKey, []string{"http://localhost:3000"})
	vip.SetDefault(InMemoryDBKey, false)
	vip.SetDefault(DBTypeKey, DbTypeBadger)
	vip.SetDefault(WebhookTimeoutKey, 10*time.Second)
	vip.SetDefault(StatsIntervalKey, 0)

	for key, value := range overrides {
		vip.Set(key, value)
	}

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbType returns the account store backend, the in-memory flag taking
// precedence over DB_TYPE.
func GetDbType() string {
	if GetBool(InMemoryDBKey) {
		return DbTypeInMemory
	}
	return GetString(DBTypeKey)
}

// GetDbDir returns the directory of the account store, or an empty string if
// the in-memory db is enabled.
func GetDbDir() string {
	if GetBool(InMemoryDBKey) {
		return ""
	}
	return filepath.Join(GetDatadir(), DbLocation)
}

// GetPubSubDir returns the directory of the webhook subscription store, or an
// empty string if the in-memory db is enabled.
func GetPubSubDir() string {
	if GetBool(InMemoryDBKey) {
		return ""
	}
	return GetDatadir()
}

func GetKeyScheme() wallet.Scheme {
	scheme, _ := wallet.ParseScheme(GetString(KeySchemeKey))
	return scheme
}

func GetSS58Prefix() uint16 {
	return uint16(GetInt(SS58PrefixKey))
}

func GetLogLevel() log.Level {
	return log.Level(GetInt(LogLevelKey))
}

// GetCORSAllowedOrigins supports both a list and a comma separated env value.
func GetCORSAllowedOrigins() []string {
	origins := make([]string, 0)
	for _, o := range GetStringSlice(CORSAllowedOriginsKey) {
		for _, origin := range strings.Split(o, ",") {
			if origin = strings.TrimSpace(origin); len(origin) > 0 {
				origins = append(origins, origin)
			}
		}
	}
	return origins
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	level := GetInt(LogLevelKey)
	if level < int(log.PanicLevel) || level > int(log.TraceLevel) {
		return fmt.Errorf("%s must be in range [0, 6]", LogLevelKey)
	}

	if err := validateURL(GetString(NodeURLKey), "ws", "wss"); err != nil {
		return fmt.Errorf("invalid %s: %s", NodeURLKey, err)
	}
	if err := validateURL(GetString(EventsURLKey), "http", "https"); err != nil {
		return fmt.Errorf("invalid %s: %s", EventsURLKey, err)
	}

	if _, err := wallet.ParseScheme(GetString(KeySchemeKey)); err != nil {
		return err
	}

	prefix := GetInt(SS58PrefixKey)
	if prefix < 0 || prefix > wallet.MaxSS58Prefix {
		return fmt.Errorf(
			"%s must be in range [0, %d]", SS58PrefixKey, wallet.MaxSS58Prefix,
		)
	}

	decimals := GetInt(TokenDecimalsKey)
	if decimals < 0 || decimals > 38 {
		return fmt.Errorf("%s must be in range [0, 38]", TokenDecimalsKey)
	}

	palletIndex := GetInt(BalancesPalletIndexKey)
	if palletIndex < 0 || palletIndex > 255 {
		return fmt.Errorf("%s must be in range [0, 255]", BalancesPalletIndexKey)
	}

	logN := GetInt(ScryptLogNKey)
	if logN < wallet.MinScryptLogN || logN > wallet.MaxScryptLogN {
		return fmt.Errorf(
			"%s must be in range [%d, %d]",
			ScryptLogNKey, wallet.MinScryptLogN, wallet.MaxScryptLogN,
		)
	}

	if GetDuration(TxTimeoutKey) < 0 {
		return fmt.Errorf("%s must not be negative", TxTimeoutKey)
	}
	if GetDuration(TxRetentionKey) < 0 {
		return fmt.Errorf("%s must not be negative", TxRetentionKey)
	}

	if address := GetString(HTTPListeningAddressKey); address != "localhost" &&
		net.ParseIP(address) == nil {
		return fmt.Errorf("%s must be an IP address", HTTPListeningAddressKey)
	}

	if GetInt(EventsRateLimitKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", EventsRateLimitKey)
	}

	switch dbType := GetString(DBTypeKey); dbType {
	case DbTypeBadger:
	case DbTypePostgres:
		if err := validateURL(
			GetString(PgDataSourceURLKey), "postgres", "postgresql",
		); err != nil {
			return fmt.Errorf("invalid %s: %s", PgDataSourceURLKey, err)
		}
	default:
		return fmt.Errorf(
			"%s must be one of %s, %s", DBTypeKey, DbTypeBadger, DbTypePostgres,
		)
	}

	return nil
}

func validateURL(rawURL string, schemes ...string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && len(u.Host) > 0 {
			return nil
		}
	}
	return fmt.Errorf("%q must be a %s url", rawURL, strings.Join(schemes, "/"))
}

func initDatadir() error {
	if GetBool(InMemoryDBKey) {
		return nil
	}
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}
	return makeDirectoryIfNotExists(filepath.Join(datadir, PubSubLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
