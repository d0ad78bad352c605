package permissions

import "sort"

// Global permission keys checked by handlers and services
const (
	FaceTag       = "face.tag"
	FaceReview    = "face.review"
	PersonManage  = "person.manage"
	ImageUpload   = "image.upload"
	ImageDetect   = "image.detect"
	UserManage    = "user.manage"
	RoleManage    = "role.manage"
	SystemProcess = "system.process"
)

// PermissionDefinition describes a single permission
type PermissionDefinition struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PermissionGroupDefinition groups related permissions for display
type PermissionGroupDefinition struct {
	Key         string                 `json:"key"`
	Name        string                 `json:"name"`
	Permissions []PermissionDefinition `json:"permissions"`
}

var DefinedPermissionGroups = []PermissionGroupDefinition{
	{
		Key:  "face",
		Name: "Face Tagging",
		Permissions: []PermissionDefinition{
			{Key: FaceTag, Name: "Tag Faces", Description: "Create, edit and delete own face tags and apply suggestions."},
			{Key: FaceReview, Name: "Review Face Tags", Description: "Approve or reject pending face tags and see tags of every status."},
		},
	},
	{
		Key:  "person",
		Name: "People",
		Permissions: []PermissionDefinition{
			{Key: PersonManage, Name: "Manage People", Description: "Create people and search images for their faces."},
		},
	},
	{
		Key:  "image",
		Name: "Images",
		Permissions: []PermissionDefinition{
			{Key: ImageUpload, Name: "Upload Images", Description: "Upload images, which queues metadata, detection and thumbnail tasks."},
			{Key: ImageDetect, Name: "Run Detection", Description: "Run face detection and tag suggestions on demand."},
		},
	},
	{
		Key:  "admin",
		Name: "Administration",
		Permissions: []PermissionDefinition{
			{Key: UserManage, Name: "Manage Users", Description: "Create users and assign permissions."},
			{Key: RoleManage, Name: "Manage Roles", Description: "Create roles and assign their permissions."},
			{Key: SystemProcess, Name: "Reprocess Images", Description: "Re-queue background tasks for existing images."},
		},
	},
}

// ReviewerPermissions are what makes a user privileged for the tag workflow
var ReviewerPermissions = []string{FaceReview}

var allPermissions = func() map[string]PermissionDefinition {
	m := make(map[string]PermissionDefinition)
	for _, group := range DefinedPermissionGroups {
		for _, perm := range group.Permissions {
			m[perm.Key] = perm
		}
	}
	return m
}()

// GetAllPermissionKeys returns every defined key in sorted order
func GetAllPermissionKeys() []string {
	keys := make([]string, 0, len(allPermissions))
	for k := range allPermissions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func IsValidPermissionKey(key string) bool {
	_, ok := allPermissions[key]
	return ok
}

func GetPermissionDefinition(key string) (PermissionDefinition, bool) {
	def, ok := allPermissions[key]
	return def, ok
}
