package repository

import (
	"errors"
	"time"

	"go-file-share/internal/model"
	"go-file-share/pkg/db"

	"gorm.io/gorm"
)

// FileRepository 处理文件记录持久化
type FileRepository struct {
	db *gorm.DB
}

// 创建一个新的文件存储库实例
func NewFileRepository() *FileRepository {
	return &FileRepository{db: db.DB}
}

// 新建文件记录。短码唯一索引冲突时返回gorm.ErrDuplicatedKey，
// 由调用方重新生成短码后重试。
func (r *FileRepository) Create(file *model.File) error {
	return r.db.Create(file).Error
}

// IsDuplicateCode 判断错误是否为短码唯一索引冲突
func IsDuplicateCode(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// 通过ID查找文件记录（软删除的记录视为不存在）
func (r *FileRepository) FindByID(id string) (*model.File, error) {
	var file model.File
	if err := r.db.Where("id = ?", id).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 文件不存在
		}
		return nil, err
	}
	return &file, nil
}

// 通过ID查找文件记录，包含软删除的记录。
// 删除接口需要区分"已删除"与"从未存在"。
func (r *FileRepository) FindByIDUnscoped(id string) (*model.File, error) {
	var file model.File
	if err := r.db.Unscoped().Where("id = ?", id).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

// 通过短码查找文件记录
func (r *FileRepository) FindByShortCode(code string) (*model.File, error) {
	var file model.File
	if err := r.db.Where("short_code = ?", code).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

// 查找用户的所有文件记录
func (r *FileRepository) FindByOwner(ownerID uint) ([]model.File, error) {
	var files []model.File
	err := r.db.Where("owner_id = ?", ownerID).
		Order("created_at DESC").Find(&files).Error
	return files, err
}

// 按名称模糊搜索文件记录
func (r *FileRepository) SearchByName(query string) ([]model.File, error) {
	var files []model.File
	err := r.db.Where("name LIKE ?", "%"+query+"%").Find(&files).Error
	return files, err
}

// 更新文件状态
func (r *FileRepository) UpdateStatus(id, status string) error {
	return r.db.Model(&model.File{}).Where("id = ?", id).
		Update("status", status).Error
}

// 更新过期时间
func (r *FileRepository) UpdateExpiry(id string, expiresAt time.Time) error {
	return r.db.Model(&model.File{}).Where("id = ?", id).
		Update("expires_at", expiresAt).Error
}

// 更新密码哈希并标记为受保护
func (r *FileRepository) UpdatePasswordHash(id, hash string) error {
	return r.db.Model(&model.File{}).Where("id = ?", id).Updates(map[string]interface{}{
		"password_hash":         hash,
		"is_password_protected": true,
	}).Error
}

// 替换短码。唯一索引冲突时返回gorm.ErrDuplicatedKey。
func (r *FileRepository) UpdateShortCode(id, code string) error {
	return r.db.Model(&model.File{}).Where("id = ?", id).
		Update("short_code", code).Error
}

// IncrementDownloadCount 原子递增下载计数。
// 必须使用SQL表达式而非读-改-写，并发下载时不允许丢失更新。
func (r *FileRepository) IncrementDownloadCount(id string) error {
	return r.db.Model(&model.File{}).Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
}

// MarkDeleted 将记录置为deleted状态并软删除。
// 之后公开查询不再可见，而管理接口仍可区分"已删除"。
func (r *FileRepository) MarkDeleted(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.File{}).Where("id = ?", id).
			Update("status", model.StatusDeleted).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.File{}).Error
	})
}
