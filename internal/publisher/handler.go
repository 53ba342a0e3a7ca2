package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
)

// Handler is the Lambda entrypoint. Each record of the S3 event is admitted
// independently. Rejected definitions are logged and acknowledged so that
// Lambda does not retry them; infrastructure failures are returned.
func (p *Publisher) Handler(ctx context.Context, event events.S3Event) error {
	var errs []error
	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		// S3 URL-encodes keys in notifications; older events lack the decoded form.
		key := record.S3.Object.URLDecodedKey
		if key == "" {
			key = record.S3.Object.Key
		}

		if p.Config.Bucket != "" && bucket != p.Config.Bucket {
			p.Log.ErrorContext(ctx, "S3 event from unexpected bucket, discarding",
				"expected_bucket", p.Config.Bucket,
				"actual_bucket", bucket,
				"key", key,
			)
			continue
		}

		if _, err := p.Publish(ctx, key); err != nil && !isRejection(err) {
			errs = append(errs, fmt.Errorf("publishing %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
