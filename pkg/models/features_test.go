package models

import "testing"

func TestFieldRendersCommonTypes(t *testing.T) {
	x := Features{
		"text":   "hello",
		"count":  float64(3),
		"score":  2.5,
		"flag":   true,
		"big":    int64(9000),
		"number": 7,
	}

	cases := map[string]string{
		"text":    "hello",
		"count":   "3",
		"score":   "2.500000",
		"flag":    "true",
		"big":     "9000",
		"number":  "7",
		"missing": "",
	}
	for field, want := range cases {
		if got := x.Field(field); got != want {
			t.Fatalf("Field(%q) = %q, want %q", field, got, want)
		}
	}

	var nilFeatures Features
	if got := nilFeatures.Field("anything"); got != "" {
		t.Fatalf("nil features should render empty, got %q", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	x := Features{
		"metrics": map[string]interface{}{"retweets": 4.0},
		"tags":    []interface{}{"a", "b"},
		"text":    "original",
	}

	c := x.Clone()
	c["text"] = "mutated"
	c["metrics"].(map[string]interface{})["retweets"] = 99.0
	c["tags"].([]interface{})[0] = "z"

	if x.Field("text") != "original" {
		t.Fatalf("top-level mutation leaked into the original")
	}
	if x["metrics"].(map[string]interface{})["retweets"] != 4.0 {
		t.Fatalf("nested map mutation leaked into the original")
	}
	if x["tags"].([]interface{})[0] != "a" {
		t.Fatalf("slice mutation leaked into the original")
	}

	var nilFeatures Features
	if nilFeatures.Clone() != nil {
		t.Fatalf("nil features should clone to nil")
	}
}
