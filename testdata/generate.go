//go:build ignore

// Command generate writes the sample files used in the README examples:
// simple.parquet and simple.csv with the same five users.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/vegasq/quiver"
	"github.com/vegasq/quiver/output"
)

type User struct {
	ID     int64
	Name   string
	Age    int32
	Active bool
	Score  float64
}

var schema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "age", Type: arrow.PrimitiveTypes.Int32},
	{Name: "active", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "score", Type: arrow.PrimitiveTypes.Float64},
}, nil)

func main() {
	users := []User{
		{ID: 1, Name: "alice", Age: 30, Active: true, Score: 95.5},
		{ID: 2, Name: "bob", Age: 25, Active: false, Score: 82.3},
		{ID: 3, Name: "charlie", Age: 35, Active: true, Score: 88.7},
		{ID: 4, Name: "diana", Age: 28, Active: true, Score: 91.2},
		{ID: 5, Name: "eve", Age: 42, Active: false, Score: 76.8},
	}

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	for _, u := range users {
		b.Field(0).(*array.Int64Builder).Append(u.ID)
		b.Field(1).(*array.StringBuilder).Append(u.Name)
		b.Field(2).(*array.Int32Builder).Append(u.Age)
		b.Field(3).(*array.BooleanBuilder).Append(u.Active)
		b.Field(4).(*array.Float64Builder).Append(u.Score)
	}
	rec := b.NewRecord()
	defer rec.Release()

	qctx, err := quiver.NewContext()
	if err != nil {
		log.Fatal(err)
	}
	defer qctx.Close()

	if err := qctx.WriteParquet("simple.parquet", rec); err != nil {
		log.Fatal(err)
	}

	file, err := os.Create("simple.csv")
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()
	if err := output.NewCSVFormatter(file).Format(schema, []arrow.Record{rec}); err != nil {
		log.Fatal(err)
	}

	// Read the file back as a smoke test
	if err := qctx.RegisterParquet(context.Background(), "users", "simple.parquet"); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Generated simple.parquet and simple.csv with %d users\n", len(users))
}
