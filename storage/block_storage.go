package storage

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"
)

type BlockStorageConfig struct {
	Host      string `mapstructure:"host" json:"host,omitempty"`
	Region    string `mapstructure:"region" json:"region,omitempty"`
	AccessKey string `mapstructure:"access_key" json:"access_key,omitempty"`
	Secret    string `mapstructure:"secret" json:"secret,omitempty"`
	Bucket    string `mapstructure:"bucket" json:"bucket,omitempty"`
}

// BlockStorage archives purchase receipts to an S3-compatible bucket. The
// archive is write-mostly: receipts are uploaded after each settled purchase
// and fetched only for audits.
type BlockStorage struct {
	s3Client *s3.S3
	bucket   string
	logger   *logrus.Logger
}

func NewBlockStorage(cfg BlockStorageConfig) (*BlockStorage, error) {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(cfg.Host),
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.Secret, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("fail to create s3 session, err: %w", err)
	}
	return &BlockStorage{
		s3Client: s3.New(sess),
		bucket:   cfg.Bucket,
		logger:   logrus.WithField("service", "block-storage").Logger,
	}, nil
}

func (b *BlockStorage) UploadFile(data []byte, name string) error {
	b.logger.WithFields(logrus.Fields{
		"name": name,
		"size": len(data),
	}).Debug("uploading file")

	_, err := b.s3Client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("fail to upload %s, err: %w", name, err)
	}
	return nil
}

func (b *BlockStorage) GetFile(name string) ([]byte, error) {
	output, err := b.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("fail to get %s, err: %w", name, err)
	}
	defer func() {
		if err := output.Body.Close(); err != nil {
			b.logger.WithError(err).Error("fail to close s3 object body")
		}
	}()
	return io.ReadAll(output.Body)
}

func (b *BlockStorage) FileExist(name string) (bool, error) {
	_, err := b.s3Client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			if aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound" {
				return false, nil
			}
		}
		return false, err
	}
	return true, nil
}

// ReceiptKey builds the object key for a purchase receipt.
func ReceiptKey(owner, id string) string {
	return strings.Join([]string{"receipts", owner, id + ".json"}, "/")
}
