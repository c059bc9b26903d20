package api

// Backend endpoints, relative to the configured base URL
const (
	// Auth endpoints
	PathLogin          = "/auth/login"
	PathAgentLogin     = "/auth/agent/login"
	PathRegister       = "/auth/register"
	PathVerifyEmail    = "/auth/verify-email"
	PathForgotPassword = "/auth/forgot-password"
	PathResetPassword  = "/auth/reset-password"
	PathRefreshToken   = "/auth/refresh"

	// Account verification endpoints
	PathUserAccount  = "/account"
	PathAgentAccount = "/agent/me"

	// Vehicle endpoints
	PathUserVehicles   = "/account/vehicles"
	PathPrimaryVehicle = "/account/vehicles/primary"
	PathVehicleBrands  = "/public/vehicles/brands"
	PathVehicleModels  = "/public/vehicles/models"
	PathVehicleTypes   = "/public/vehicles/types"

	// Content endpoints
	PathBanners            = "/banners"
	PathAlerts             = "/alerts"
	PathCoupons            = "/coupons"
	PathRecentCoupons      = "/coupons/recent"
	PathRedemptions        = "/redemptions"
	PathRecentTransactions = "/account/transactions/recent"

	// Agent endpoints
	PathAgentTransactions = "/agent/transactions"
	PathClaimCoupon       = "/agent/claims/coupon"
	PathClaimRedemption   = "/agent/claims/redemption"
)
