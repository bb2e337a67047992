package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeNetwork(r NetworkRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeNetwork(data []byte) (NetworkRecord, error) {
	var record NetworkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return NetworkRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return NetworkRecord{}, err
	}
	return record, nil
}

func EncodeRun(r RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (RunRecord, error) {
	var run RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return RunRecord{}, err
	}
	return run, nil
}

func checkVersion(v VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
