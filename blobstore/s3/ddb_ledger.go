package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ArchiveLedger records which store versions have been archived, backed by
// DynamoDB. S3 has no compare-and-swap, so the ledger provides the atomic
// "this version is now archived" commit: two machines archiving the same
// store cannot both claim the same version.
//
// Table schema:
//   - Partition key: store_uri (string) - the archive's base URI
//   - Sort key: version (number) - the archived store version
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name tigstore-archives \
//	  --attribute-definitions AttributeName=store_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=store_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type ArchiveLedger struct {
	client    DDBClient
	tableName string
	storeURI  string
}

// DDBClient is the subset of the DynamoDB API the ledger uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ErrVersionAlreadyArchived is returned when another writer archived the
// version first.
var ErrVersionAlreadyArchived = errors.New("store version already archived")

// NewArchiveLedger creates a ledger for one archived store. storeURI should
// be the archive base location, e.g. "s3://bucket/assemblies/droso".
func NewArchiveLedger(client DDBClient, tableName, storeURI string) *ArchiveLedger {
	return &ArchiveLedger{
		client:    client,
		tableName: tableName,
		storeURI:  storeURI,
	}
}

// LatestVersion returns the highest archived version and the manifest blob
// name recorded for it. Returns 0 when nothing has been archived.
func (l *ArchiveLedger) LatestVersion(ctx context.Context) (uint32, string, error) {
	resp, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("store_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: l.storeURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query archive ledger: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("archive ledger item missing version attribute")
	}
	manifestAttr, ok := item["manifest"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("archive ledger item missing manifest attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("parse archived version: %w", err)
	}
	return uint32(version), manifestAttr.Value, nil
}

// Commit records that a store version has been archived under the given
// manifest blob. The conditional put makes the commit atomic: the first
// writer wins, later writers get ErrVersionAlreadyArchived.
func (l *ArchiveLedger) Commit(ctx context.Context, version uint32, manifest string) error {
	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"store_uri": &types.AttributeValueMemberS{Value: l.storeURI},
			"version":   &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(version), 10)},
			"manifest":  &types.AttributeValueMemberS{Value: manifest},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrVersionAlreadyArchived
		}
		return fmt.Errorf("commit archive version: %w", err)
	}
	return nil
}

// Forget removes the ledger entry for a version, after its blobs have been
// deleted.
func (l *ArchiveLedger) Forget(ctx context.Context, version uint32) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"store_uri": &types.AttributeValueMemberS{Value: l.storeURI},
			"version":   &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(version), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("forget archived version: %w", err)
	}
	return nil
}
