package tablesvc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Rows live under a numeric partition key "id". The item with id 0 holds the
// id sequence and is hidden from selects.
const (
	counterID   = 0
	attrSeq     = "seq"
	nameID      = "#id"
	valueZeroID = ":zero"
)

// DynamoDBDriver maps each logical table to a DynamoDB table named
// prefix+table.
type DynamoDBDriver struct {
	client DynamoDBClient
	prefix string
	now    func() time.Time
}

// NewDynamoDBDriver wraps a DynamoDB client.
func NewDynamoDBDriver(client DynamoDBClient, prefix string) *DynamoDBDriver {
	return &DynamoDBDriver{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// OpenDynamoDB builds a client for dynamodb://<region>?endpoint=..&prefix=..
// key is "ACCESS_KEY_ID:SECRET"; empty uses the default credential chain.
func OpenDynamoDB(ctx context.Context, u *url.URL, key string) (*DynamoDBDriver, error) {
	region := u.Host
	if region == "" {
		return nil, fmt.Errorf("dynamodb endpoint needs a region: dynamodb://<region>")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if key != "" {
		id, secret, ok := strings.Cut(key, ":")
		if !ok || id == "" || secret == "" {
			return nil, fmt.Errorf("dynamodb key must look like ACCESS_KEY_ID:SECRET")
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(id, secret, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	q := u.Query()
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if ep := q.Get("endpoint"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
	})
	return NewDynamoDBDriver(client, q.Get("prefix")), nil
}

func (d *DynamoDBDriver) tableName(table string) *string {
	return aws.String(d.prefix + table)
}

func idKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		ColID: &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// nextID bumps the per-table sequence atomically.
func (d *DynamoDBDriver) nextID(ctx context.Context, table string) (int64, error) {
	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 d.tableName(table),
		Key:                       idKey(counterID),
		UpdateExpression:          aws.String("ADD #seq :one"),
		ExpressionAttributeNames:  map[string]string{"#seq": attrSeq},
		ExpressionAttributeValues: map[string]types.AttributeValue{":one": &types.AttributeValueMemberN{Value: "1"}},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	seq, ok := out.Attributes[attrSeq].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("next id: sequence attribute missing")
	}
	id, err := strconv.ParseInt(seq.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	return id, nil
}

func (d *DynamoDBDriver) Select(ctx context.Context, q Query) ([]Row, error) {
	names := map[string]string{nameID: ColID}
	values := map[string]types.AttributeValue{
		valueZeroID: &types.AttributeValueMemberN{Value: strconv.Itoa(counterID)},
	}
	filters := []string{nameID + " > " + valueZeroID}
	for i, c := range q.Where {
		n, v := "#c"+strconv.Itoa(i), ":v"+strconv.Itoa(i)
		av, err := attributevalue.Marshal(c.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal filter %s: %w", c.Column, err)
		}
		names[n] = c.Column
		values[v] = av
		filters = append(filters, n+" = "+v)
	}

	var out []Row
	var lastEvaluatedKey map[string]types.AttributeValue
	for {
		input := &dynamodb.ScanInput{
			TableName:                 d.tableName(q.Table),
			FilterExpression:          aws.String(strings.Join(filters, " AND ")),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}
		if lastEvaluatedKey != nil {
			input.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := d.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for _, item := range result.Items {
			var r Row
			if err := attributevalue.UnmarshalMap(item, &r); err != nil {
				return nil, fmt.Errorf("unmarshal row: %w", err)
			}
			out = append(out, r)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	sortRows(out, q.OrderBy)
	return out, nil
}

func (d *DynamoDBDriver) Insert(ctx context.Context, table string, row Row) (Row, error) {
	id, err := d.nextID(ctx, table)
	if err != nil {
		return Row{}, err
	}
	row.ID = id
	row.CreatedAt = d.now().UTC()

	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		return Row{}, fmt.Errorf("marshal row: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                d.tableName(table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(" + nameID + ")"),
		ExpressionAttributeNames: map[string]string{nameID: ColID},
	})
	if err != nil {
		return Row{}, fmt.Errorf("put item: %w", err)
	}
	return row, nil
}

// matchingIDs resolves a query to row ids, skipping the scan when the query
// is a plain id lookup. The counter item never matches.
func (d *DynamoDBDriver) matchingIDs(ctx context.Context, q Query) ([]int64, error) {
	if id, ok := q.IDOnly(); ok {
		if id <= counterID {
			return nil, nil
		}
		return []int64{id}, nil
	}
	rows, err := d.Select(ctx, Query{Table: q.Table, Where: q.Where})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func (d *DynamoDBDriver) Update(ctx context.Context, q Query, p Patch) ([]Row, error) {
	ids, err := d.matchingIDs(ctx, q)
	if err != nil {
		return nil, err
	}

	names := map[string]string{nameID: ColID}
	values := map[string]types.AttributeValue{}
	var sets []string
	if p.Title != nil {
		names["#title"] = ColTitle
		values[":title"] = &types.AttributeValueMemberS{Value: *p.Title}
		sets = append(sets, "#title = :title")
	}
	if p.Completed != nil {
		names["#completed"] = ColCompleted
		values[":completed"] = &types.AttributeValueMemberBOOL{Value: *p.Completed}
		sets = append(sets, "#completed = :completed")
	}

	var out []Row
	for _, id := range ids {
		result, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 d.tableName(q.Table),
			Key:                       idKey(id),
			UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
			ConditionExpression:       aws.String("attribute_exists(" + nameID + ")"),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ReturnValues:              types.ReturnValueAllNew,
		})
		if err != nil {
			if isConditionFailed(err) {
				continue
			}
			return nil, fmt.Errorf("update item %d: %w", id, err)
		}
		var r Row
		if err := attributevalue.UnmarshalMap(result.Attributes, &r); err != nil {
			return nil, fmt.Errorf("unmarshal row: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (d *DynamoDBDriver) Delete(ctx context.Context, q Query) error {
	ids, err := d.matchingIDs(ctx, q)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                d.tableName(q.Table),
			Key:                      idKey(id),
			ConditionExpression:      aws.String("attribute_exists(" + nameID + ")"),
			ExpressionAttributeNames: map[string]string{nameID: ColID},
		})
		if err != nil && !isConditionFailed(err) {
			return fmt.Errorf("delete item %d: %w", id, err)
		}
	}
	return nil
}

func (d *DynamoDBDriver) Close() error { return nil }
