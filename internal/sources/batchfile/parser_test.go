package batchfile

import (
	"errors"
	"reflect"
	"testing"

	"github.com/careseek/importer/internal/models"
)

func TestParseBasic(t *testing.T) {
	text := "기관명,주소,전화번호\n" +
		"서울중앙병원,서울특별시 중구 세종대로 110,02-123-4567\n" +
		"튼튼약국,부산광역시 해운대구 우동 123,051-987-6543\n"

	result, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 2 || result.Skipped != 0 {
		t.Fatalf("expected 2 records, 0 skipped; got %d/%d", len(result.Records), result.Skipped)
	}
	if got := result.Records[0].Get(models.FieldName); got != "서울중앙병원" {
		t.Fatalf("unexpected name: %q", got)
	}
	if got := result.Records[1].Get(models.FieldPhone); got != "051-987-6543" {
		t.Fatalf("unexpected phone: %q", got)
	}
}

func TestParseQuotingRules(t *testing.T) {
	text := "name,address\n" +
		`"성모 ""새"" 의원","서울시 강남구, 테헤란로 1"` + "\n"

	result, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	rec := result.Records[0]
	if rec.Get(models.FieldName) != `성모 "새" 의원` {
		t.Fatalf("doubled quote not unescaped: %q", rec.Get(models.FieldName))
	}
	if rec.Get(models.FieldAddress) != "서울시 강남구, 테헤란로 1" {
		t.Fatalf("comma inside quotes split the field: %q", rec.Get(models.FieldAddress))
	}
}

func TestParseSkipsBadRows(t *testing.T) {
	text := "name,address,phone\n" +
		"좋은병원,서울시 종로구 1,02-111-2222\n" +
		"짧은행\n" + // fewer columns than header
		"   ,서울시 어딘가,02-000-0000\n" + // empty required name
		"한빛의원,   ,02-333-4444\n" // empty required address

	result, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	if result.Skipped != 3 {
		t.Fatalf("expected 3 skipped, got %d", result.Skipped)
	}
}

func TestParseMissingHeaderFailsFast(t *testing.T) {
	_, err := Parse("col_a,col_b\nx,y\n")
	if !errors.Is(err, ErrMissingHeader) {
		t.Fatalf("expected ErrMissingHeader, got %v", err)
	}

	_, err = Parse("")
	if !errors.Is(err, ErrMissingHeader) {
		t.Fatalf("expected ErrMissingHeader for empty text, got %v", err)
	}
}

func TestParseIdempotent(t *testing.T) {
	text := "name,address\n가나의원,서울시 1\n다라약국,서울시 2\n"

	first, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("parsing twice diverged: %+v vs %+v", first, second)
	}
}

func TestParseHeaderCaseInsensitive(t *testing.T) {
	result, err := Parse("NAME,Addr\n가나병원,서울시 3\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
}
