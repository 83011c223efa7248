package repositories

import (
	"encoding/json"
	"fmt"

	"quill/app/models"
)

const (
	// Keys of the persisted identity fields.
	TokenKey    = "authToken"
	UsernameKey = "username"
	EmailKey    = "email"

	// Key prefixes for different entity types.
	SessionKeyPrefix = "session:"
	PostKeyPrefix    = "post:"
)

// sessionKeys lists the persisted identity keys in a fixed order.
var sessionKeys = []string{TokenKey, UsernameKey, EmailKey}

// postKey orders cached posts by their position in the feed.
func postKey(position int) []byte {
	return []byte(fmt.Sprintf("%s%08d", PostKeyPrefix, position))
}

// marshalEntity marshals an entity to JSON.
func marshalEntity(entity interface{}) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity.
func unmarshalEntity(data []byte, entity interface{}) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return nil
}

func sessionFromFields(fields map[string]string) models.Session {
	return models.Session{
		Token:    fields[TokenKey],
		Username: fields[UsernameKey],
		Email:    fields[EmailKey],
	}
}

func sessionFields(session models.Session) map[string]string {
	return map[string]string{
		TokenKey:    session.Token,
		UsernameKey: session.Username,
		EmailKey:    session.Email,
	}
}
