package webapp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Env is what a factory may draw on while building a handler.
type Env struct {
	Context context.Context
	Logger  *zap.Logger
}

// Factory builds a handler from its type-specific options.
type Factory func(env Env, options map[string]any) (Handler, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		"files":    newFilesFromOptions,
		"canned":   newCannedFromOptions,
		"redirect": newRedirectFromOptions,
		"failing":  newFailingFromOptions,
		"email":    newEmailFromOptions,
		"objects":  newObjectsFromOptions,
	}
)

// Register makes a handler type available to configuration. Registering a
// name twice is an error.
func Register(name string, f Factory) error {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("handler type %q already registered", name)
	}
	factories[name] = f
	return nil
}

// Types lists the registered handler type names.
func Types() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether a handler type is registered.
func Known(name string) bool {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Create builds a handler of the named type.
func Create(name string, env Env, options map[string]any) (Handler, error) {
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown handler type: %q", name)
	}
	if env.Context == nil {
		env.Context = context.Background()
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	h, err := f(env, options)
	if err != nil {
		return nil, fmt.Errorf("%s handler: %w", name, err)
	}
	return h, nil
}

// decodeOptions decodes a handler's option map into out. Unknown keys are
// rejected so typos surface at startup.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func newFilesFromOptions(_ Env, options map[string]any) (Handler, error) {
	type filesOptions struct {
		Root         string `mapstructure:"root"`
		DefaultFile  string `mapstructure:"default_file"`
		CacheControl string `mapstructure:"cache_control"`
	}
	opts := filesOptions{DefaultFile: "index.html"}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	var extra []FileServingOption
	if opts.CacheControl != "" {
		extra = append(extra, WithCacheControl(opts.CacheControl))
	}
	return NewFileServing(opts.Root, opts.DefaultFile, extra...)
}

func newCannedFromOptions(_ Env, options map[string]any) (Handler, error) {
	type cannedOptions struct {
		MimeType string `mapstructure:"mime_type"`
		Get      string `mapstructure:"get"`
		Post     string `mapstructure:"post"`
	}
	opts := cannedOptions{MimeType: contentTypeHTML}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return NewCanned(opts.MimeType, opts.Get, opts.Post), nil
}

func newRedirectFromOptions(env Env, options map[string]any) (Handler, error) {
	type redirectOptions struct {
		Matches []RedirectRule `mapstructure:"matches"`
	}
	var opts redirectOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return NewRedirecting(opts.Matches, env.Logger)
}

func newFailingFromOptions(_ Env, options map[string]any) (Handler, error) {
	var none struct{}
	if err := decodeOptions(options, &none); err != nil {
		return nil, err
	}
	return Failing{}, nil
}

func newEmailFromOptions(env Env, options map[string]any) (Handler, error) {
	type emailOptions struct {
		Host       string        `mapstructure:"host"`
		Port       int           `mapstructure:"port"`
		User       string        `mapstructure:"user"`
		Password   string        `mapstructure:"password"`
		UserAgent  string        `mapstructure:"user_agent"`
		UseTLS     bool          `mapstructure:"use_tls"`
		Timeout    time.Duration `mapstructure:"timeout"`
		Subject    string        `mapstructure:"subject"`
		From       string        `mapstructure:"from"`
		To         string        `mapstructure:"to"`
		Cc         []string      `mapstructure:"cc"`
		Success    string        `mapstructure:"success"`
		Failure    string        `mapstructure:"failure"`
		Parameters []string      `mapstructure:"parameters"`
	}
	opts := emailOptions{Port: 587, UseTLS: true}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	if opts.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("port %d is out of range", opts.Port)
	}
	if len(opts.Parameters) == 0 {
		return nil, fmt.Errorf("parameters are required")
	}

	mailer := &SMTPMailer{
		Host:      opts.Host,
		Port:      opts.Port,
		User:      opts.User,
		Password:  opts.Password,
		UserAgent: opts.UserAgent,
		UseTLS:    opts.UseTLS,
		Timeout:   opts.Timeout,
	}
	return NewEmailSending(mailer, EmailConfig{
		Parameters:      opts.Parameters,
		Subject:         opts.Subject,
		From:            opts.From,
		To:              opts.To,
		Cc:              opts.Cc,
		SuccessLocation: opts.Success,
		FailureLocation: opts.Failure,
	}, env.Logger.Named("email"))
}

func newObjectsFromOptions(env Env, options map[string]any) (Handler, error) {
	type objectsOptions struct {
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Region          string `mapstructure:"region"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		ForcePathStyle  bool   `mapstructure:"force_path_style"`
		DefaultFile     string `mapstructure:"default_file"`
		CacheControl    string `mapstructure:"cache_control"`
	}
	opts := objectsOptions{DefaultFile: "index.html"}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	client, err := NewS3Client(env.Context, S3ClientConfig{
		Region:          opts.Region,
		Endpoint:        opts.Endpoint,
		AccessKeyID:     opts.AccessKeyID,
		SecretAccessKey: opts.SecretAccessKey,
		ForcePathStyle:  opts.ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return NewObjectServing(client, ObjectConfig{
		Bucket:       opts.Bucket,
		KeyPrefix:    opts.KeyPrefix,
		DefaultFile:  opts.DefaultFile,
		CacheControl: opts.CacheControl,
	}, env.Logger.Named("objects"))
}
