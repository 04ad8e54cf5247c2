package publish

import "testing"

func TestNewMinIOValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing endpoint", cfg: Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}},
		{name: "missing bucket", cfg: Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
		{name: "missing credentials", cfg: Config{Endpoint: "localhost:9000", Bucket: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMinIO(tt.cfg); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		ssl     bool
		host    string
		wantSSL bool
	}{
		{in: "localhost:9000", host: "localhost:9000"},
		{in: "https://s3.example.org", host: "s3.example.org", wantSSL: true},
		{in: "http://minio:9000", ssl: true, host: "minio:9000", wantSSL: true},
	}
	for _, tt := range tests {
		host, ssl := parseEndpoint(tt.in, tt.ssl)
		if host != tt.host || ssl != tt.wantSSL {
			t.Errorf("parseEndpoint(%q): expected %s/%v, got %s/%v", tt.in, tt.host, tt.wantSSL, host, ssl)
		}
	}
}

func TestObjectKey(t *testing.T) {
	m, err := NewMinIO(Config{Endpoint: "localhost:9000", Bucket: "corpus", AccessKey: "a", SecretKey: "s", Prefix: "/dod/"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if key := m.ObjectKey("/data/out/DOD_OCR_korpus_20250307.zip"); key != "dod/DOD_OCR_korpus_20250307.zip" {
		t.Errorf("Expected dod/DOD_OCR_korpus_20250307.zip, got %s", key)
	}
}
