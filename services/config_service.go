package services

import (
	"encoding/json"

	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/database/repositories"
	"github.com/l3montree-dev/vulnfeed/shared"
)

type ConfigService struct {
	repository interface {
		Save(tx shared.DB, config *models.Config) error
		GetDB(tx shared.DB) shared.DB
	}
}

func NewConfigService(db shared.DB) ConfigService {
	return ConfigService{
		repository: repositories.NewConfigRepository(db),
	}
}

func (service ConfigService) GetJSONConfig(key string, v any) error {
	var config models.Config
	if err := service.repository.GetDB(nil).Where("key = ?", key).First(&config).Error; err != nil {
		return err
	}

	return json.Unmarshal([]byte(config.Val), v)
}

func (service ConfigService) SetJSONConfig(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	config := models.Config{
		Key: key,
		Val: string(b),
	}

	return service.repository.Save(nil, &config)
}
