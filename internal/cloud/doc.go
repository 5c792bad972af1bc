// Package cloud provides the AWS client wrapper used by ec2backup.
//
// This package wraps github.com/aws/aws-sdk-go-v2 to provide:
//   - Client construction from the SDK default credential chain
//   - Caller identity lookup (account id, used to scope snapshot listing)
//   - Extraction of API error codes for structured logging
//
// Consumer-Side Interfaces:
//
// This package does not define interfaces. Consumers (internal/backup)
// define the narrow EC2 and STS interfaces they need; *ec2.Client and
// *sts.Client satisfy them implicitly, which keeps the workflow testable
// without an AWS account.
//
//	client, err := cloud.Connect(ctx, "eu-west-1")
//	if err != nil {
//	    return err
//	}
//	runner := backup.NewRunner(cfg, client, logger)
package cloud
