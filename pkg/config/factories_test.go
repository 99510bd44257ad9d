package config

import (
	"context"
	"testing"
)

func TestCreateObjectStore_Memory(t *testing.T) {
	cfg := GetDefaultConfig()

	store, err := CreateObjectStore(context.Background(), &cfg.Storage)
	if err != nil {
		t.Fatalf("CreateObjectStore failed: %v", err)
	}
	if store.Kind() != "memory" {
		t.Errorf("Expected memory backend, got %q", store.Kind())
	}
}

func TestCreateObjectStore_UnknownType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Type = "tape"

	_, err := CreateObjectStore(context.Background(), &cfg.Storage)
	if err == nil {
		t.Fatal("Expected error for unknown storage type")
	}
}

func TestCreateObjectStore_S3MissingRegion(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Type = "s3"

	_, err := CreateObjectStore(context.Background(), &cfg.Storage)
	if err == nil {
		t.Fatal("Expected error for S3 storage without region")
	}
}

func TestCreateRecordStore_Memory(t *testing.T) {
	cfg := GetDefaultConfig()

	store, err := CreateRecordStore(context.Background(), &cfg.Records)
	if err != nil {
		t.Fatalf("CreateRecordStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCreateRecordStore_BadgerInMemory(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Records.Type = "badger"
	cfg.Records.Badger["in_memory"] = true

	store, err := CreateRecordStore(context.Background(), &cfg.Records)
	if err != nil {
		t.Fatalf("CreateRecordStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCreateRecordStore_BadgerMissingPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Records.Type = "badger"

	_, err := CreateRecordStore(context.Background(), &cfg.Records)
	if err == nil {
		t.Fatal("Expected error for badger store without db_path")
	}
}

func TestCreateAccessService_Presigned(t *testing.T) {
	cfg := GetDefaultConfig()

	backend, err := CreateObjectStore(context.Background(), &cfg.Storage)
	if err != nil {
		t.Fatalf("CreateObjectStore failed: %v", err)
	}

	svc, err := CreateAccessService(context.Background(), cfg, backend)
	if err != nil {
		t.Fatalf("CreateAccessService failed: %v", err)
	}
	if svc == nil {
		t.Fatal("Expected non-nil access service")
	}
}

func TestCreateAccessService_CredentialMissingRegion(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Type = "s3"
	cfg.Access.Mode = "credential"
	cfg.Access.Roles = map[string]string{"tenant-a": "arn:aws:iam::123456789012:role/storage"}

	backend, err := CreateObjectStore(context.Background(), &GetDefaultConfig().Storage)
	if err != nil {
		t.Fatalf("CreateObjectStore failed: %v", err)
	}

	_, err = CreateAccessService(context.Background(), cfg, backend)
	if err == nil {
		t.Fatal("Expected error for credential mode without S3 region")
	}
}
