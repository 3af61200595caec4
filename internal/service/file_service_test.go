package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go-file-share/internal/event"
	"go-file-share/internal/gate"
	"go-file-share/internal/model"
	"go-file-share/internal/repository"
	"go-file-share/pkg/config"
	"go-file-share/pkg/db"
	"go-file-share/pkg/logger"

	"gorm.io/gorm"
)

// fakeBlobStore 内存Blob存储，可注入失败
type fakeBlobStore struct {
	mu                 sync.Mutex
	blobs              map[string][]byte
	failOnKeySubstring string
	failDelete         bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (s *fakeBlobStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if s.failOnKeySubstring != "" && strings.Contains(key, s.failOnKeySubstring) {
		return "", errors.New("simulated storage failure")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()
	return "http://test.local/blobs/" + key, nil
}

func (s *fakeBlobStore) Delete(ctx context.Context, key string) error {
	if s.failDelete {
		return errors.New("simulated storage failure")
	}
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

func setupServiceTest(t *testing.T) (*FileService, *ShareService, *fakeBlobStore, *model.User) {
	if err := config.InitTest(); err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}
	logger.InitTestLogger()

	// 配置测试数据库连接
	if err := db.InitDB(); err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	cleanupTables(t)

	fileRepo := repository.NewFileRepository()
	userRepo := repository.NewUserRepository()
	blobs := newFakeBlobStore()
	fileService := NewFileService(fileRepo, userRepo, blobs, event.NopPublisher{})
	shareService := NewShareService(fileRepo)

	owner := &model.User{
		Fullname: "Test Owner",
		Username: "owner",
		Email:    "owner@example.com",
		Password: "hashed",
	}
	if err := userRepo.Create(owner); err != nil {
		t.Fatalf("Failed to create owner: %v", err)
	}

	return fileService, shareService, blobs, owner
}

// 帮助函数：清空测试表中的所有数据
func cleanupTables(t *testing.T) {
	// gorm的*DB在终结方法后不可复用，每个Delete使用独立的会话链
	if err := db.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&model.File{}).Error; err != nil {
		t.Logf("Failed to cleanup files table: %v", err)
	}
	if err := db.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&model.User{}).Error; err != nil {
		t.Logf("Failed to cleanup users table: %v", err)
	}
}

func uploadOne(t *testing.T, svc *FileService, ownerID uint, name, contentType, password string, hours int) UploadResult {
	t.Helper()
	content := "test file content"
	results, err := svc.Upload(context.Background(), UploadRequest{
		OwnerID:     ownerID,
		Password:    password,
		ExpiryHours: hours,
		Files: []UploadPayload{{
			Name:        name,
			ContentType: contentType,
			SizeBytes:   int64(len(content)),
			Reader:      strings.NewReader(content),
		}},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Error != "" {
		t.Fatalf("Upload failed: %v", results[0].Error)
	}
	return results[0]
}

func TestFileService_UploadDefaultRetention(t *testing.T) {
	fileService, _, blobs, owner := setupServiceTest(t)

	result := uploadOne(t, fileService, owner.ID, "holiday photo.jpg", "image/jpeg", "", 0)
	if result.FileID == "" || result.ShortURL == "" {
		t.Fatal("Expected file ID and short URL in result")
	}

	file, err := fileService.GetFileDetails(result.FileID)
	if err != nil {
		t.Fatalf("GetFileDetails() error = %v", err)
	}
	if file.Status != model.StatusActive {
		t.Errorf("Expected status active, got %v", file.Status)
	}
	if file.IsPasswordProtected {
		t.Error("Expected file to not be password protected")
	}
	// 空白被规范化，扩展名保留
	if strings.Contains(file.Name, " ") || !strings.HasSuffix(file.Name, ".jpg") {
		t.Errorf("Unexpected stored name %q", file.Name)
	}

	// 默认保留期约为10天
	wantExpiry := time.Now().Add(10 * 24 * time.Hour)
	if diff := file.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("Expected expiry near %v, got %v", wantExpiry, file.ExpiresAt)
	}

	// Blob已写入
	blobs.mu.Lock()
	_, stored := blobs.blobs[file.BlobKey]
	blobs.mu.Unlock()
	if !stored {
		t.Error("Expected blob to be stored")
	}

	// 立即下载成功且计数为1
	url, decision, err := fileService.Download(context.Background(), result.FileID, "")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if decision.Code != gate.Allow {
		t.Fatalf("Expected Allow, got %v (%v)", decision.Code, decision.Reason)
	}
	if url != file.BlobURL {
		t.Errorf("Expected download URL %v, got %v", file.BlobURL, url)
	}
	count, err := fileService.GetDownloadCount(result.FileID)
	if err != nil || count != 1 {
		t.Errorf("Expected download count 1, got %d, err %v", count, err)
	}
}

func TestFileService_UploadUnknownOwner(t *testing.T) {
	fileService, _, _, _ := setupServiceTest(t)

	_, err := fileService.Upload(context.Background(), UploadRequest{
		OwnerID: 99999,
		Files: []UploadPayload{{
			Name: "a.txt", ContentType: "text/plain", SizeBytes: 1, Reader: strings.NewReader("x"),
		}},
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestFileService_UploadNoFiles(t *testing.T) {
	fileService, _, _, owner := setupServiceTest(t)

	_, err := fileService.Upload(context.Background(), UploadRequest{OwnerID: owner.ID})
	if !errors.Is(err, ErrNoFiles) {
		t.Errorf("Expected ErrNoFiles, got %v", err)
	}
}

// 批量上传的部分失败不影响其余文件，且逐个文件报告
func TestFileService_UploadPartialSuccess(t *testing.T) {
	fileService, _, blobs, owner := setupServiceTest(t)

	blobs.failOnKeySubstring = "bad"
	results, err := fileService.Upload(context.Background(), UploadRequest{
		OwnerID: owner.ID,
		Files: []UploadPayload{
			{Name: "good.txt", ContentType: "text/plain", SizeBytes: 1, Reader: strings.NewReader("x")},
			{Name: "bad.txt", ContentType: "text/plain", SizeBytes: 1, Reader: strings.NewReader("x")},
		},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Error != "" || results[0].FileID == "" {
		t.Errorf("Expected first file to succeed, got %+v", results[0])
	}
	if results[1].Error == "" || results[1].FileID != "" {
		t.Errorf("Expected second file to fail, got %+v", results[1])
	}

	files, err := fileService.GetUserFiles(owner.ID)
	if err != nil {
		t.Fatalf("GetUserFiles() error = %v", err)
	}
	if len(files) != 1 {
		t.Errorf("Expected exactly 1 persisted record, got %d", len(files))
	}
}

func TestFileService_DownloadGates(t *testing.T) {
	fileService, _, _, owner := setupServiceTest(t)

	result := uploadOne(t, fileService, owner.ID, "secret.pdf", "application/pdf", "hunter2", 0)

	// 缺少密码
	_, decision, err := fileService.Download(context.Background(), result.FileID, "")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if decision.Code != gate.Unauthorized {
		t.Errorf("Expected Unauthorized, got %v", decision.Code)
	}

	// 密码错误
	_, decision, err = fileService.Download(context.Background(), result.FileID, "wrong")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if decision.Code != gate.Forbidden {
		t.Errorf("Expected Forbidden, got %v", decision.Code)
	}

	// 密码正确
	_, decision, err = fileService.Download(context.Background(), result.FileID, "hunter2")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if decision.Code != gate.Allow {
		t.Errorf("Expected Allow, got %v (%v)", decision.Code, decision.Reason)
	}

	// inactive文件不可下载
	if _, err := fileService.UpdateStatus(result.FileID, model.StatusInactive); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	_, decision, err = fileService.Download(context.Background(), result.FileID, "hunter2")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if decision.Code != gate.Forbidden || decision.Reason != "not available" {
		t.Errorf("Expected Forbidden/not available, got %v (%v)", decision.Code, decision.Reason)
	}

	// 只有一次成功下载被计数
	count, err := fileService.GetDownloadCount(result.FileID)
	if err != nil || count != 1 {
		t.Errorf("Expected download count 1, got %d, err %v", count, err)
	}
}

// 1小时过期+密码：时钟推进后解析返回Gone且状态被持久化为expired
func TestFileService_ExpiryScenario(t *testing.T) {
	fileService, shareService, _, owner := setupServiceTest(t)

	result := uploadOne(t, fileService, owner.ID, "temp.txt", "text/plain", "secret", 1)

	file, err := fileService.GetFileDetails(result.FileID)
	if err != nil {
		t.Fatalf("GetFileDetails() error = %v", err)
	}

	// 模拟时钟推进超过1小时
	future := time.Now().Add(2 * time.Hour)
	fileService.now = func() time.Time { return future }
	shareService.now = func() time.Time { return future }

	_, decision, err := shareService.Resolve(file.ShortCode)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// 过期优先于密码：不提示输入密码
	if decision.Code != gate.Gone || decision.Reason != "expired" {
		t.Errorf("Expected Gone/expired, got %v (%v)", decision.Code, decision.Reason)
	}

	// 惰性转换已持久化
	after, err := fileService.GetFileDetails(result.FileID)
	if err != nil {
		t.Fatalf("GetFileDetails() error = %v", err)
	}
	if after.Status != model.StatusExpired {
		t.Errorf("Expected status expired, got %v", after.Status)
	}

	// 下载同样返回Gone
	_, decision, err = fileService.Download(context.Background(), result.FileID, "secret")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if decision.Code != gate.Gone {
		t.Errorf("Expected Gone, got %v", decision.Code)
	}
}

// 列表不触发惰性过期转换：未被解析的过期记录保持陈旧的active状态
func TestFileService_ListingDoesNotExpire(t *testing.T) {
	fileService, shareService, _, owner := setupServiceTest(t)

	uploadOne(t, fileService, owner.ID, "stale.txt", "text/plain", "", 1)

	future := time.Now().Add(2 * time.Hour)
	fileService.now = func() time.Time { return future }
	shareService.now = func() time.Time { return future }

	files, err := fileService.GetUserFiles(owner.ID)
	if err != nil || len(files) != 1 {
		t.Fatalf("GetUserFiles() error = %v, len %d", err, len(files))
	}
	if files[0].Status != model.StatusActive {
		t.Errorf("Expected stale active status before access, got %v", files[0].Status)
	}

	// 解析后状态才变为expired
	if _, _, err := shareService.Resolve(files[0].ShortCode); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	files, err = fileService.GetUserFiles(owner.ID)
	if err != nil || len(files) != 1 {
		t.Fatalf("GetUserFiles() error = %v, len %d", err, len(files))
	}
	if files[0].Status != model.StatusExpired {
		t.Errorf("Expected expired status after access, got %v", files[0].Status)
	}
}

func TestFileService_UpdateStatus(t *testing.T) {
	fileService, _, _, owner := setupServiceTest(t)

	result := uploadOne(t, fileService, owner.ID, "toggle.txt", "text/plain", "", 0)

	// active → inactive
	file, err := fileService.UpdateStatus(result.FileID, model.StatusInactive)
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if file.Status != model.StatusInactive {
		t.Errorf("Expected inactive, got %v", file.Status)
	}

	// 相同状态是显式错误而非静默成功
	_, err = fileService.UpdateStatus(result.FileID, model.StatusInactive)
	if !errors.Is(err, ErrSameStatus) {
		t.Errorf("Expected ErrSameStatus, got %v", err)
	}

	// 切回active
	if _, err := fileService.UpdateStatus(result.FileID, model.StatusActive); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	// 非法目标状态
	_, err = fileService.UpdateStatus(result.FileID, "expired")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus, got %v", err)
	}

	// 未知ID
	_, err = fileService.UpdateStatus("no-such-id", model.StatusInactive)
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
}

func TestFileService_UpdateExpiry(t *testing.T) {
	fileService, _, _, owner := setupServiceTest(t)

	result := uploadOne(t, fileService, owner.ID, "extend.txt", "text/plain", "", 1)

	file, err := fileService.UpdateExpiry(result.FileID, 48)
	if err != nil {
		t.Fatalf("UpdateExpiry() error = %v", err)
	}
	wantExpiry := time.Now().Add(48 * time.Hour)
	if diff := file.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("Expected expiry near %v, got %v", wantExpiry, file.ExpiresAt)
	}

	_, err = fileService.UpdateExpiry("no-such-id", 1)
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
}

func TestFileService_UpdatePassword(t *testing.T) {
	fileService, shareService, _, owner := setupServiceTest(t)

	result := uploadOne(t, fileService, owner.ID, "lockme.txt", "text/plain", "", 0)

	// 缺少密码
	_, err := fileService.UpdatePassword(result.FileID, "")
	if !errors.Is(err, ErrMissingPassword) {
		t.Errorf("Expected ErrMissingPassword, got %v", err)
	}

	file, err := fileService.UpdatePassword(result.FileID, "newpass")
	if err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	if !file.IsPasswordProtected {
		t.Error("Expected file to be password protected after update")
	}

	// 新密码通过完整访问门
	decision, err := shareService.VerifyPassword(result.FileID, "newpass")
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if decision.Code != gate.Allow {
		t.Errorf("Expected Allow, got %v", decision.Code)
	}
}

func TestFileService_Delete(t *testing.T) {
	fileService, shareService, blobs, owner := setupServiceTest(t)

	result := uploadOne(t, fileService, owner.ID, "gone.txt", "text/plain", "", 0)
	file, err := fileService.GetFileDetails(result.FileID)
	if err != nil {
		t.Fatalf("GetFileDetails() error = %v", err)
	}

	if err := fileService.Delete(context.Background(), result.FileID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// Blob已回收
	blobs.mu.Lock()
	_, stored := blobs.blobs[file.BlobKey]
	blobs.mu.Unlock()
	if stored {
		t.Error("Expected blob to be removed")
	}

	// 详情不可见
	_, err = fileService.GetFileDetails(result.FileID)
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}

	// 短码解析返回NotFound（与从未存在不可区分）
	_, decision, err := shareService.Resolve(file.ShortCode)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if decision.Code != gate.NotFound {
		t.Errorf("Expected NotFound, got %v", decision.Code)
	}

	// 重复删除是显式错误，且不再触碰存储
	err = fileService.Delete(context.Background(), result.FileID)
	if !errors.Is(err, ErrAlreadyDeleted) {
		t.Errorf("Expected ErrAlreadyDeleted, got %v", err)
	}
}

// Blob删除失败时记录保持原样，错误可重试
func TestFileService_DeleteBlobFailure(t *testing.T) {
	fileService, _, blobs, owner := setupServiceTest(t)

	result := uploadOne(t, fileService, owner.ID, "sticky.txt", "text/plain", "", 0)

	blobs.failDelete = true
	err := fileService.Delete(context.Background(), result.FileID)
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("Expected ErrUpstream, got %v", err)
	}

	// 记录未被删除
	file, err := fileService.GetFileDetails(result.FileID)
	if err != nil {
		t.Fatalf("GetFileDetails() error = %v", err)
	}
	if file.Status != model.StatusActive {
		t.Errorf("Expected record untouched, got status %v", file.Status)
	}

	// 重试成功
	blobs.failDelete = false
	if err := fileService.Delete(context.Background(), result.FileID); err != nil {
		t.Fatalf("Delete() retry error = %v", err)
	}
}

// N个并发下载恰好递增N次
func TestFileService_ConcurrentDownloads(t *testing.T) {
	fileService, _, _, owner := setupServiceTest(t)

	result := uploadOne(t, fileService, owner.ID, "popular.txt", "text/plain", "", 0)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, decision, err := fileService.Download(context.Background(), result.FileID, "")
			if err != nil {
				errs <- err
				return
			}
			if decision.Code != gate.Allow {
				errs <- fmt.Errorf("unexpected decision %v", decision.Code)
				return
			}
			errs <- nil
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Download() error = %v", err)
		}
	}

	count, err := fileService.GetDownloadCount(result.FileID)
	if err != nil || count != n {
		t.Errorf("Expected download count %d, got %d, err %v", n, count, err)
	}

	repo := repository.NewUserRepository()
	ownerAfter, err := repo.FindByID(owner.ID)
	if err != nil || ownerAfter == nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if ownerAfter.TotalDownloads != n {
		t.Errorf("Expected owner total downloads %d, got %d", n, ownerAfter.TotalDownloads)
	}
}
