package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
)

const uploadTimeout = 50 * time.Second

// Uploader writes meal photos into a public Cloud Storage bucket.
type Uploader struct {
	cl         *gcs.Client
	projectID  string
	bucketName string
	uploadPath string
}

func NewUploader(ctx context.Context, projectID, bucketName string) (*Uploader, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}

	return &Uploader{
		cl:         client,
		projectID:  projectID,
		bucketName: bucketName,
		uploadPath: "food-photos/",
	}, nil
}

// Upload writes the object and returns its public URL and bucket path.
func (u *Uploader) Upload(ctx context.Context, objectName string, file io.Reader) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	objectPath := u.uploadPath + objectName

	wc := u.cl.Bucket(u.bucketName).Object(objectPath).NewWriter(ctx)
	wc.ContentType = "image/jpeg"
	if _, err := io.Copy(wc, file); err != nil {
		return "", "", fmt.Errorf("io.Copy: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", "", fmt.Errorf("Writer.Close: %v", err)
	}

	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucketName, objectPath)
	return url, objectPath, nil
}

// MakeBucketPublic grants allUsers read access. One-time setup helper.
func (u *Uploader) MakeBucketPublic(ctx context.Context) error {
	bucket := u.cl.Bucket(u.bucketName)

	policy, err := bucket.IAM().Policy(ctx)
	if err != nil {
		return err
	}

	policy.Add("allUsers", "roles/storage.objectViewer")

	return bucket.IAM().SetPolicy(ctx, policy)
}

func (u *Uploader) Close() error {
	return u.cl.Close()
}
