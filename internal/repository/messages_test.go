package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/models"
)

func setupMockMessagesDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *MessageRepository) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewMessageRepository(db, logger)

	return db, mock, repo
}

func strPtr(s string) *string {
	return &s
}

func f64Ptr(v float64) *float64 {
	return &v
}

func TestAppendReading_Success(t *testing.T) {
	db, mock, repo := setupMockMessagesDB(t)
	defer db.Close()

	receivedAt := time.Now()
	msg := &models.StoredMessage{
		Topic:      "clima/temperatura",
		Payload:    `{"sensor_id": "SIMULATOR_01", "valor": 24.5}`,
		SensorID:   strPtr("SIMULATOR_01"),
		Value:      f64Ptr(24.5),
		Unit:       strPtr("°C"),
		ReceivedAt: receivedAt,
	}

	mock.ExpectQuery(`INSERT INTO mensajes_mqtt`).
		WithArgs(msg.Topic, msg.Payload, msg.SensorID, msg.Value, msg.Unit, nil, receivedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	id, err := repo.AppendReading(context.Background(), msg)

	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendReading_NullStructuredFields(t *testing.T) {
	db, mock, repo := setupMockMessagesDB(t)
	defer db.Close()

	// 解码失败的载荷：结构化字段全为 NULL，原始载荷仍然入库
	receivedAt := time.Now()
	msg := &models.StoredMessage{
		Topic:      "topico/raro",
		Payload:    "no es json",
		ReceivedAt: receivedAt,
	}

	mock.ExpectQuery(`INSERT INTO mensajes_mqtt`).
		WithArgs(msg.Topic, msg.Payload, nil, nil, nil, nil, receivedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.AppendReading(context.Background(), msg)

	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendReading_DuplicateProducesTwoRows(t *testing.T) {
	db, mock, repo := setupMockMessagesDB(t)
	defer db.Close()

	// 不做去重：同一逻辑消息插入两次得到两行
	receivedAt := time.Now()
	msg := &models.StoredMessage{
		Topic:      "clima/viento",
		Payload:    `{"valor": 12.0}`,
		Value:      f64Ptr(12.0),
		ReceivedAt: receivedAt,
	}

	mock.ExpectQuery(`INSERT INTO mensajes_mqtt`).
		WithArgs(msg.Topic, msg.Payload, nil, msg.Value, nil, nil, receivedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`INSERT INTO mensajes_mqtt`).
		WithArgs(msg.Topic, msg.Payload, nil, msg.Value, nil, nil, receivedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	id1, err := repo.AppendReading(context.Background(), msg)
	require.NoError(t, err)
	id2, err := repo.AppendReading(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendReading_OrderedInserts(t *testing.T) {
	db, mock, repo := setupMockMessagesDB(t)
	defer db.Close()

	// 交付顺序 [topicA, topicB, topicA] 产生同序的三行
	receivedAt := time.Now()
	topics := []string{"topicA", "topicB", "topicA"}
	for i, topic := range topics {
		mock.ExpectQuery(`INSERT INTO mensajes_mqtt`).
			WithArgs(topic, "{}", nil, nil, nil, nil, receivedAt).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(i + 1)))
	}

	var ids []int64
	for _, topic := range topics {
		id, err := repo.AppendReading(context.Background(), &models.StoredMessage{
			Topic:      topic,
			Payload:    "{}",
			ReceivedAt: receivedAt,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.Equal(t, []int64{1, 2, 3}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendReading_Error(t *testing.T) {
	db, mock, repo := setupMockMessagesDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO mensajes_mqtt`).
		WillReturnError(errors.New("connection reset by peer"))

	id, err := repo.AppendReading(context.Background(), &models.StoredMessage{
		Topic:      "clima/temperatura",
		Payload:    "{}",
		ReceivedAt: time.Now(),
	})

	require.Error(t, err)
	assert.Equal(t, int64(0), id)
	assert.Contains(t, err.Error(), "failed to insert mensajes_mqtt")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsHealthy(t *testing.T) {
	db, mock, repo := setupMockMessagesDB(t)
	defer db.Close()

	mock.ExpectPing()

	err := repo.IsHealthy(context.Background())

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsHealthy_Unreachable(t *testing.T) {
	db, mock, repo := setupMockMessagesDB(t)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err := repo.IsHealthy(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestReconnect(t *testing.T) {
	db, mock, repo := setupMockMessagesDB(t)
	defer db.Close()

	mock.ExpectPing()

	err := repo.Reconnect(context.Background())

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
