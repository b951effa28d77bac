package webapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// ObjectAPI is the subset of the S3 client used by ObjectServing.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// ObjectServing serves objects from an S3 bucket. The request path, below
// the key prefix, is the object key.
type ObjectServing struct {
	client       ObjectAPI
	bucket       string
	prefix       string
	defaultFile  string
	cacheControl string
	logger       *zap.Logger
}

// ObjectConfig configures an ObjectServing handler.
type ObjectConfig struct {
	Bucket       string
	KeyPrefix    string
	DefaultFile  string
	CacheControl string
}

// NewObjectServing returns a handler reading from client.
func NewObjectServing(client ObjectAPI, cfg ObjectConfig, logger *zap.Logger) (*ObjectServing, error) {
	if client == nil {
		return nil, fmt.Errorf("object server: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object server: bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cc := cfg.CacheControl
	if cc == "" {
		cc = defaultCacheControl
	}
	return &ObjectServing{
		client:       client,
		bucket:       cfg.Bucket,
		prefix:       strings.Trim(cfg.KeyPrefix, "/"),
		defaultFile:  cfg.DefaultFile,
		cacheControl: cc,
		logger:       logger,
	}, nil
}

// S3ClientConfig describes how to reach the object store.
type S3ClientConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// NewS3Client builds an S3 client. Without static credentials the default
// AWS credential chain is used.
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*s3.Client, error) {
	var opts []func(*awsConfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsConfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

func (o *ObjectServing) HandleGet(s Session, req *http.Request, _ Variables) {
	key := o.key(req.URL.Path)
	s.Async(func(ctx context.Context) func() {
		out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(o.bucket),
			Key:    aws.String(key),
		})
		return func() {
			if err != nil {
				o.sendError(s, req, key, err)
				return
			}
			resp := o.response(s, req, key, out.ContentType, out.ContentLength, out.LastModified)
			resp.Body = out.Body
			s.SendResponse(resp, "")
		}
	})
}

func (o *ObjectServing) HandleHead(s Session, req *http.Request, _ Variables) {
	key := o.key(req.URL.Path)
	s.Async(func(ctx context.Context) func() {
		out, err := o.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(o.bucket),
			Key:    aws.String(key),
		})
		return func() {
			if err != nil {
				o.sendError(s, req, key, err)
				return
			}
			resp := o.response(s, req, key, out.ContentType, out.ContentLength, out.LastModified)
			resp.Body = nil
			s.SendResponse(resp, "")
		}
	})
}

func (o *ObjectServing) HandlePost(s Session, req *http.Request, _ Variables) {
	s.SendResponse(NotFound(s, req), "")
}

func (o *ObjectServing) response(s Session, req *http.Request, key string, contentType *string, length *int64, modified *time.Time) *http.Response {
	resp := NewResponse(s, req, http.StatusOK)
	ct := aws.ToString(contentType)
	if ct == "" {
		ct = s.MimeTypes().Lookup(key)
	}
	if ct != "" {
		resp.Header.Set("Content-Type", ct)
	}
	resp.Header.Set("Cache-Control", o.cacheControl)
	resp.Header.Set("Date", s.Clock().Now().UTC().Format(http.TimeFormat))
	if modified != nil {
		resp.Header.Set("Last-Modified", modified.UTC().Format(http.TimeFormat))
	}
	resp.ContentLength = aws.ToInt64(length)
	return resp
}

func (o *ObjectServing) sendError(s Session, req *http.Request, key string, err error) {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		s.SendResponse(NotFound(s, req), "")
		return
	}
	o.logger.Error("Failed to fetch object",
		zap.String("bucket", o.bucket),
		zap.String("key", key),
		zap.Error(err),
	)
	s.SendResponse(ServerError(s, req, "object store unavailable"), "")
}

func (o *ObjectServing) key(urlPath string) string {
	k := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if o.defaultFile != "" && (k == "" || strings.HasSuffix(urlPath, "/")) {
		k = path.Join(k, o.defaultFile)
	}
	if o.prefix != "" {
		k = o.prefix + "/" + k
	}
	return k
}
