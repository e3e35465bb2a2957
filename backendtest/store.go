package backendtest

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/Susekh/TaskNest-client/domain"
)

var bg = context.Background()

const (
	taskKeyPrefix     = "task:"
	boardKey          = "board"
	groupMsgKeyPrefix = "messages:"
	dmKeyPrefix       = "dm:"
	fileKeyPrefix     = "file:"
)

// store keeps the simulated backend's state in redis, so handlers and the
// websocket hub share one source of truth the way the real backend does.
type store struct {
	rdb *redis.Client
}

func (s *store) putTask(task domain.Task) error {
	data, err := sonic.Marshal(task)
	if err != nil {
		return err
	}
	return s.rdb.Set(bg, taskKeyPrefix+task.ID, data, 0).Err()
}

func (s *store) getTask(id string) (domain.Task, error) {
	data, err := s.rdb.Get(bg, taskKeyPrefix+id).Bytes()
	if err != nil {
		return domain.Task{}, err
	}
	var task domain.Task
	if err := sonic.Unmarshal(data, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (s *store) putBoard(cols []domain.Column) error {
	data, err := sonic.Marshal(cols)
	if err != nil {
		return err
	}
	return s.rdb.Set(bg, boardKey, data, 0).Err()
}

func (s *store) getBoard() ([]domain.Column, error) {
	data, err := s.rdb.Get(bg, boardKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cols []domain.Column
	if err := sonic.Unmarshal(data, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func (s *store) appendMessage(key string, msg domain.Message) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	return s.rdb.RPush(bg, key, data).Err()
}

// listMessages returns the stored list oldest-first.
func (s *store) listMessages(key string) ([]domain.Message, error) {
	entries, err := s.rdb.LRange(bg, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(entries))
	for _, entry := range entries {
		var msg domain.Message
		if err := sonic.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// updateMessage rewrites the entry with the given id across all lists under
// the prefix. It reports whether the message was found.
func (s *store) updateMessage(prefix, id string, mutate func(*domain.Message)) (bool, error) {
	keys, err := s.rdb.Keys(bg, prefix+"*").Result()
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		msgs, err := s.listMessages(key)
		if err != nil {
			return false, err
		}
		for i := range msgs {
			if msgs[i].ID != id {
				continue
			}
			mutate(&msgs[i])
			data, err := sonic.Marshal(msgs[i])
			if err != nil {
				return false, err
			}
			if err := s.rdb.LSet(bg, key, int64(i), data).Err(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// removeMessage deletes the entry with the given id from the lists under the
// prefix. It reports whether the message was found.
func (s *store) removeMessage(prefix, id string) (bool, error) {
	keys, err := s.rdb.Keys(bg, prefix+"*").Result()
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		msgs, err := s.listMessages(key)
		if err != nil {
			return false, err
		}
		for i := range msgs {
			if msgs[i].ID != id {
				continue
			}
			// LRem needs the exact stored payload; rewrite the list instead.
			rest := append(msgs[:i:i], msgs[i+1:]...)
			if err := s.rdb.Del(bg, key).Err(); err != nil {
				return false, err
			}
			for _, msg := range rest {
				if err := s.appendMessage(key, msg); err != nil {
					return false, err
				}
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *store) putFile(key string, content []byte) error {
	return s.rdb.Set(bg, fileKeyPrefix+key, content, 0).Err()
}

func (s *store) hasFile(key string) (bool, error) {
	n, err := s.rdb.Exists(bg, fileKeyPrefix+key).Result()
	return n > 0, err
}

func (s *store) deleteFile(key string) error {
	n, err := s.rdb.Del(bg, fileKeyPrefix+key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("file %s not found", key)
	}
	return nil
}
