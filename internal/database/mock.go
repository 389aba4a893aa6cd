package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) RecentMessages(limit int) ([]Message, error) {
	args := m.Called(limit)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) DeleteMessage(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockChatRepository) CreateBan(params CreateBanParams) (Ban, error) {
	args := m.Called(params)
	return args.Get(0).(Ban), args.Error(1)
}
func (m *MockChatRepository) DeleteBan(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockChatRepository) ListBans() ([]Ban, error) {
	args := m.Called()
	if bans, ok := args.Get(0).([]Ban); ok {
		return bans, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) ActiveBanSessionIds() ([]string, error) {
	args := m.Called()
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) CountAccounts() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
